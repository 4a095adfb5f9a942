package workers

import (
	"context"
	"fmt"

	"partner-server/internal/observability"

	"github.com/hibiken/asynq"
)

// TemplatePoller pulls gateway status for all submitted templates.
type TemplatePoller interface {
	PollPending(ctx context.Context) error
}

// TemplateWorker runs the periodic template status poll.
type TemplateWorker struct {
	poller TemplatePoller
	logger *observability.Logger
}

// NewTemplateWorker creates a new template worker
func NewTemplateWorker(poller TemplatePoller, logger *observability.Logger) *TemplateWorker {
	return &TemplateWorker{
		poller: poller,
		logger: logger,
	}
}

// ProcessTemplatePollTask handles one scheduled poll run.
func (w *TemplateWorker) ProcessTemplatePollTask(ctx context.Context, _ *asynq.Task) error {
	w.logger.Info(ctx, "running template status poll")

	if err := w.poller.PollPending(ctx); err != nil {
		w.logger.Error(ctx, "template status poll failed", err)
		return fmt.Errorf("failed to poll template statuses: %w", err)
	}

	w.logger.Info(ctx, "template status poll completed")
	return nil
}
