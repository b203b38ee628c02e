package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Pipeline failure taxonomy.
var (
	ErrIngestionFailed              = errors.New("ingestion failed")
	ErrAudioUnavailable             = errors.New("audio unavailable")
	ErrPoseExtractionEmpty          = errors.New("pose extraction empty")
	ErrSegmentationInsufficientData = errors.New("segmentation insufficient data")
	ErrScoringInsufficientData      = errors.New("scoring insufficient data")
	ErrContentGenerationFailed      = errors.New("content generation failed")
	ErrPersistenceFailed            = errors.New("persistence failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsSoft reports whether err degrades a run instead of failing it.
func IsSoft(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrAudioUnavailable),
		errors.Is(err, ErrPoseExtractionEmpty),
		errors.Is(err, ErrSegmentationInsufficientData),
		errors.Is(err, ErrScoringInsufficientData),
		errors.Is(err, ErrContentGenerationFailed),
		errors.Is(err, ErrPersistenceFailed):
		return true
	default:
		return false
	}
}

// ErrorDetails is the structured view of a wrapped error used for logging.
type ErrorDetails struct {
	Kind    string
	Message string
	Hint    string
	Cause   error
}

var markerKinds = []struct {
	marker error
	kind   string
	hint   string
}{
	{ErrIngestionFailed, "ingestion", "check the source reference is public and reachable"},
	{ErrAudioUnavailable, "audio", "verify ffmpeg can decode the audio track"},
	{ErrPoseExtractionEmpty, "pose", "check the pose estimator endpoint and frame content"},
	{ErrSegmentationInsufficientData, "segmentation", "video has too few frames with a detected pose"},
	{ErrScoringInsufficientData, "scoring", "video has too few confident pose frames"},
	{ErrContentGenerationFailed, "content", "check llm api key and model availability"},
	{ErrPersistenceFailed, "persistence", "check storage.breakdown_db path and disk space"},
	{ErrExternalTool, "external_tool", "check the tool is installed and on PATH"},
	{ErrValidation, "validation", "check the input values"},
	{ErrConfiguration, "configuration", "run dancebreak config validate"},
	{ErrNotFound, "not_found", "check the identifier"},
	{ErrTimeout, "timeout", "retry or raise the configured timeout"},
	{ErrTransient, "transient", "retry the operation"},
}

// Details classifies err by its marker.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error(), Hint: "check logs for details", Cause: err}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			details.Kind = mk.kind
			details.Hint = mk.hint
			break
		}
	}
	return details
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
