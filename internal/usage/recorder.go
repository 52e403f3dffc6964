// Package usage implements the fire-and-forget usage sink the orchestrator
// notifies after each completed call. Recording is best-effort by contract:
// nothing here can fail the caller's request.
package usage

import (
	"context"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

// LogRecorder writes usage records to the structured log. It stands in for
// a real persistence sink; swapping it out only requires another
// domain.UsageRecorder implementation.
type LogRecorder struct{}

// NewLogRecorder creates a log-backed usage recorder.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Record logs the usage of one completed call.
func (r *LogRecorder) Record(ctx context.Context, rec domain.UsageRecord) {
	defer func() {
		// Best-effort contract: swallow anything, including logger faults.
		_ = recover()
	}()

	observability.FromContext(ctx).Info("usage recorded",
		observability.String("feature", rec.Feature),
		observability.String("target", rec.Provider+":"+rec.Model),
		observability.Int("prompt_tokens", rec.Usage.PromptTokens),
		observability.Int("completion_tokens", rec.Usage.CompletionTokens),
		observability.Int("total_tokens", rec.Usage.TotalTokens),
		observability.Float64("cost", rec.Usage.Cost),
		observability.Duration("duration", rec.Duration),
	)
}
