package processing

import (
	"context"
	"log/slog"
	"time"
)

// ProcessingProgress is a progress event emitted while a job runs and
// once more when it reaches a terminal state.
type ProcessingProgress struct {
	JobID           string    `json:"jobId"`
	ModelVersionID  string    `json:"modelVersionId,omitempty"`
	Stage           string    `json:"stage"`
	PercentComplete int       `json:"percentComplete"`
	Message         string    `json:"message,omitempty"`
	IsComplete      bool      `json:"isComplete"`
	IsSuccess       bool      `json:"isSuccess"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Notifier receives progress events. Publishing is best effort: a slow
// or broken notifier must never fail the job itself.
type Notifier interface {
	Publish(ctx context.Context, event ProcessingProgress)
}

// LogNotifier writes progress events to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier over the given logger, defaulting
// to slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Publish logs the event.
func (n *LogNotifier) Publish(ctx context.Context, event ProcessingProgress) {
	attrs := []any{
		"job_id", event.JobID,
		"stage", event.Stage,
		"percent", event.PercentComplete,
	}
	if event.ModelVersionID != "" {
		attrs = append(attrs, "model_version_id", event.ModelVersionID)
	}
	switch {
	case event.IsComplete && !event.IsSuccess:
		attrs = append(attrs, "error", event.ErrorMessage)
		n.logger.WarnContext(ctx, "processing failed", attrs...)
	case event.IsComplete:
		n.logger.InfoContext(ctx, "processing complete", attrs...)
	default:
		n.logger.DebugContext(ctx, "processing progress", attrs...)
	}
}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier []Notifier

// Publish forwards the event to every notifier.
func (m MultiNotifier) Publish(ctx context.Context, event ProcessingProgress) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}
