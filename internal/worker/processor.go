package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/events"
)

// processEvent settles the job named by event. Store failures come back as
// RetryableError; everything else is final.
func (w *Worker) processEvent(ctx context.Context, event events.JobEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.settleTimeout)
	defer cancel()

	job, err := w.jobs.Get(ctx, event.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("job %s: %w", event.JobID, err)
		}
		return NewRetryableError(fmt.Errorf("failed to load job %s: %w", event.JobID, err))
	}

	if job.Status != domain.JobStatusCompleted {
		w.logger.Warn("Completion event for job that is not completed",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return fmt.Errorf("job %s is %s: %w", job.ID, job.Status, ErrJobNotCompleted)
	}

	payment, err := w.settler.Settle(ctx, job)
	if err != nil {
		if errors.Is(err, domain.ErrPreconditionFailed) {
			return err
		}
		return NewRetryableError(fmt.Errorf("failed to settle job %s: %w", job.ID, err))
	}

	w.logger.Info("Job settled",
		slog.String("job_id", job.ID),
		slog.String("payment_id", payment.ID),
		slog.Int64("net_amount", payment.NetAmount),
	)
	return nil
}
