package breakdown

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dancebreak/internal/steps"
)

// Breakdown is one persisted pipeline run.
type Breakdown struct {
	ID                 int64                `json:"id"`
	SourceIdentity     string               `json:"source_identity"`
	SourceReference    string               `json:"source_reference"`
	PlayableMediaURL   string               `json:"playable_media_url,omitempty"`
	Title              string               `json:"title"`
	DurationSeconds    float64              `json:"duration"`
	BPM                *float64             `json:"bpm"`
	DifficultyLevel    string               `json:"difficulty_level"`
	Mode               string               `json:"mode"`
	SegmentationMethod string               `json:"segmentation_method,omitempty"`
	Steps              []steps.Step         `json:"steps"`
	RoutineContext     steps.RoutineContext `json:"routine_context"`
	Success            bool                 `json:"success"`
	ErrorMessage       string               `json:"error_message,omitempty"`
	UserID             string               `json:"user_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// TotalSteps returns the number of steps in the breakdown.
func (b *Breakdown) TotalSteps() int {
	if b == nil {
		return 0
	}
	return len(b.Steps)
}

// Stats summarises store activity.
type Stats struct {
	Total              int     `json:"total_breakdowns"`
	Successful         int     `json:"successful_breakdowns"`
	Failed             int     `json:"failed_breakdowns"`
	UniqueSources      int     `json:"unique_sources"`
	CacheHits          int     `json:"cache_hits"`
	CacheEfficiencyPct float64 `json:"cache_efficiency_pct"`
	SuccessRatePct     float64 `json:"success_rate_pct"`
}

// ReconcileResult reports what a duplicate sweep removed.
type ReconcileResult struct {
	RemovedCount     int `json:"removed_count"`
	SourcesProcessed int `json:"sources_processed"`
}

// DatabaseHealth describes the state of the breakdown database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	TotalBreakdowns  int
	Error            string
}

const breakdownColumns = "id, source_identity, source_reference, playable_media_url, title, duration_seconds, bpm, difficulty_level, mode, segmentation_method, steps_json, routine_context_json, success, error_message, user_id, created_at"

var expectedColumns = []string{
	"id", "source_identity", "source_reference", "playable_media_url", "title", "duration_seconds",
	"bpm", "difficulty_level", "mode", "segmentation_method", "steps_json", "routine_context_json",
	"success", "error_message", "user_id", "created_at",
}

// breakdownRow is the column-level view sqlx scans into.
type breakdownRow struct {
	ID                 int64           `db:"id"`
	SourceIdentity     string          `db:"source_identity"`
	SourceReference    string          `db:"source_reference"`
	PlayableMediaURL   sql.NullString  `db:"playable_media_url"`
	Title              sql.NullString  `db:"title"`
	DurationSeconds    float64         `db:"duration_seconds"`
	BPM                sql.NullFloat64 `db:"bpm"`
	DifficultyLevel    sql.NullString  `db:"difficulty_level"`
	Mode               string          `db:"mode"`
	SegmentationMethod sql.NullString  `db:"segmentation_method"`
	StepsJSON          string          `db:"steps_json"`
	RoutineContextJSON string          `db:"routine_context_json"`
	Success            bool            `db:"success"`
	ErrorMessage       sql.NullString  `db:"error_message"`
	UserID             sql.NullString  `db:"user_id"`
	CreatedAt          string          `db:"created_at"`
}

func (r breakdownRow) toBreakdown() (*Breakdown, error) {
	b := &Breakdown{
		ID:                 r.ID,
		SourceIdentity:     r.SourceIdentity,
		SourceReference:    r.SourceReference,
		PlayableMediaURL:   r.PlayableMediaURL.String,
		Title:              r.Title.String,
		DurationSeconds:    r.DurationSeconds,
		DifficultyLevel:    r.DifficultyLevel.String,
		Mode:               r.Mode,
		SegmentationMethod: r.SegmentationMethod.String,
		Success:            r.Success,
		ErrorMessage:       r.ErrorMessage.String,
		UserID:             r.UserID.String,
	}
	if r.BPM.Valid {
		bpm := r.BPM.Float64
		b.BPM = &bpm
	}
	if r.StepsJSON != "" {
		if err := json.Unmarshal([]byte(r.StepsJSON), &b.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for breakdown %d: %w", r.ID, err)
		}
	}
	if r.RoutineContextJSON != "" {
		if err := json.Unmarshal([]byte(r.RoutineContextJSON), &b.RoutineContext); err != nil {
			return nil, fmt.Errorf("decode routine context for breakdown %d: %w", r.ID, err)
		}
	}
	if created, err := parseTimeString(r.CreatedAt); err == nil {
		b.CreatedAt = created
	}
	return b, nil
}
