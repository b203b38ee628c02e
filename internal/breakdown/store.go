package breakdown

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dancebreak/internal/steps"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultListLimit caps list queries when the caller passes no limit.
const DefaultListLimit = 20

// Insert stores a breakdown and assigns its ID. CreatedAt defaults to now.
func (s *Store) Insert(ctx context.Context, b *Breakdown) (int64, error) {
	if b == nil {
		return 0, errors.New("breakdown is nil")
	}
	if strings.TrimSpace(b.SourceIdentity) == "" {
		return 0, errors.New("breakdown source identity is empty")
	}
	ctx = ensureContext(ctx)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}
	stepList := b.Steps
	if stepList == nil {
		stepList = []steps.Step{}
	}
	stepsJSON, err := json.Marshal(stepList)
	if err != nil {
		return 0, fmt.Errorf("encode steps: %w", err)
	}
	contextJSON, err := json.Marshal(b.RoutineContext)
	if err != nil {
		return 0, fmt.Errorf("encode routine context: %w", err)
	}

	var id int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			`INSERT INTO breakdowns (
                source_identity, source_reference, playable_media_url, title, duration_seconds, bpm,
                difficulty_level, mode, segmentation_method, steps_json, routine_context_json,
                success, error_message, user_id, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.SourceIdentity,
			b.SourceReference,
			nullableString(b.PlayableMediaURL),
			nullableString(b.Title),
			b.DurationSeconds,
			nullableFloat(b.BPM),
			nullableString(b.DifficultyLevel),
			b.Mode,
			nullableString(b.SegmentationMethod),
			string(stepsJSON),
			string(contextJSON),
			boolToInt(b.Success),
			nullableString(b.ErrorMessage),
			nullableString(b.UserID),
			formatTime(b.CreatedAt),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert breakdown: %w", err)
	}
	b.ID = id
	return id, nil
}

// GetByID fetches a breakdown. A missing row yields nil without error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Breakdown, error) {
	b, err := s.getOne(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get breakdown: %w", err)
	}
	return b, nil
}

// FindCanonical returns the most recent successful breakdown for an identity,
// or nil when none exists.
func (s *Store) FindCanonical(ctx context.Context, identity string) (*Breakdown, error) {
	b, err := s.getOne(ctx,
		`SELECT `+breakdownColumns+` FROM breakdowns
         WHERE source_identity = ? AND success = 1
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("find canonical breakdown: %w", err)
	}
	return b, nil
}

// ListByIdentity returns every breakdown for an identity, newest first.
func (s *Store) ListByIdentity(ctx context.Context, identity string) ([]*Breakdown, error) {
	list, err := s.list(ctx,
		`SELECT `+breakdownColumns+` FROM breakdowns WHERE source_identity = ? ORDER BY created_at DESC, id DESC`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns by identity: %w", err)
	}
	return list, nil
}

// ListRecent pages through all breakdowns, newest first.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]*Breakdown, error) {
	limit, offset = normalizePage(limit, offset)
	list, err := s.list(ctx,
		`SELECT `+breakdownColumns+` FROM breakdowns ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent breakdowns: %w", err)
	}
	return list, nil
}

// ListByUser pages through one user's breakdowns, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Breakdown, error) {
	limit, offset = normalizePage(limit, offset)
	list, err := s.list(ctx,
		`SELECT `+breakdownColumns+` FROM breakdowns WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list breakdowns by user: %w", err)
	}
	return list, nil
}

// Delete removes a breakdown and reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM breakdowns WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete breakdown: %w", err)
	}
	return affected > 0, nil
}

// RecordCacheHit notes that a request was served from an existing breakdown.
func (s *Store) RecordCacheHit(ctx context.Context, identity, userID string) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cache_hits (source_identity, user_id, created_at) VALUES (?, ?, ?)`,
			identity, nullableString(userID), formatTime(s.now().UTC()),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record cache hit: %w", err)
	}
	return nil
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (*Breakdown, error) {
	ctx = ensureContext(ctx)
	var row breakdownRow
	err := retryOnBusy(ctx, func() error {
		return s.db.GetContext(ctx, &row, query, args...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toBreakdown()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Breakdown, error) {
	ctx = ensureContext(ctx)
	var rows []breakdownRow
	err := retryOnBusy(ctx, func() error {
		rows = rows[:0]
		return s.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*Breakdown, 0, len(rows))
	for _, row := range rows {
		b, err := row.toBreakdown()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
