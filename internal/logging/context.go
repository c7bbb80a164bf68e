package logging

import (
	"context"
	"log/slog"

	"reelqueue/internal/services"
)

// Standard structured logging keys.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldExternalID    = "external_id"
	FieldStage         = "stage"
	FieldJob           = "job"
	FieldCorrelationID = "correlation_id"
	// FieldEventType labels a log line with a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what the failure means for the catalog.
	FieldImpact = "impact"
	// FieldErrorKind classifies a failure (transient, not_found, validation, ...).
	FieldErrorKind = "error_kind"
)

// ContextFields renders the pipeline scope carried by ctx as attributes, in
// job, stage, item, external id, correlation order.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeFrom(ctx)
	if scope.Empty() {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if scope.Job != "" {
		fields = append(fields, slog.String(FieldJob, scope.Job))
	}
	if scope.Stage != "" {
		fields = append(fields, slog.String(FieldStage, scope.Stage))
	}
	if scope.ItemID > 0 {
		fields = append(fields, slog.Int64(FieldItemID, scope.ItemID))
	}
	if scope.ExternalID > 0 {
		fields = append(fields, slog.Int64(FieldExternalID, scope.ExternalID))
	}
	if scope.RequestID != "" {
		fields = append(fields, slog.String(FieldCorrelationID, scope.RequestID))
	}
	return fields
}

// WithContext returns logger augmented with the scope carried by ctx.
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
