package audit

import (
	"context"
	"errors"
	"log/slog"
)

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder returns a recorder writing to logger.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record logs ev at info level.
func (r *LogRecorder) Record(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{
		slog.String("event_id", ev.ID),
		slog.String("operation", string(ev.Operation)),
		slog.String("outcome", ev.Outcome),
		slog.String("email_hash", ev.EmailHash),
		slog.Time("occurred_at", ev.OccurredAt),
	}
	if ev.AccountID != "" {
		attrs = append(attrs, slog.String("account_id", ev.AccountID))
	}
	if ev.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", ev.RequestID))
	}
	if len(ev.Detail) > 0 {
		attrs = append(attrs, slog.Any("detail", ev.Detail))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "recovery audit", attrs...)
	return nil
}

// Multi fans an event out to every recorder and joins their errors.
type Multi []Recorder

// Record forwards ev to each recorder, continuing past failures.
func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
