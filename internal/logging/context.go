package logging

import (
	"context"
	"log/slog"

	"dancebreak/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBreakdownID is the key for persisted breakdown identifiers.
	FieldBreakdownID = "breakdown_id"
	// FieldSourceIdentity is the key for normalized source identities.
	FieldSourceIdentity = "source_identity"
	// FieldStage is the key for pipeline stage names.
	FieldStage = "stage"
	// FieldJobID is the key for job registry identifiers.
	FieldJobID = "job_id"
	// FieldCorrelationID is the key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line (stage_start, cache_hit, ...).
	FieldEventType = "event_type"
	// FieldErrorKind carries the taxonomy kind of a failure.
	FieldErrorKind = "error_kind"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.BreakdownIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldBreakdownID, id))
	}
	if identity, ok := services.SourceIdentityFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSourceIdentity, identity))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if job, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, job))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
