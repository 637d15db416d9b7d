package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// UnsettledSource lists completed jobs that have no payment yet.
type UnsettledSource interface {
	ListUnsettled(ctx context.Context, completedBefore time.Time, limit int) ([]domain.JobOffer, error)
}

// ReconcilerConfig holds reconciler configuration
type ReconcilerConfig struct {
	Logger    *slog.Logger
	Source    UnsettledSource
	Settler   Settler
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
	Now       func() time.Time
}

// Reconciler settles completed jobs whose completion event never reached the
// worker. Settlement is idempotent per job, so a sweep racing the consumer
// still yields one payment.
type Reconciler struct {
	logger    *slog.Logger
	source    UnsettledSource
	settler   Settler
	interval  time.Duration
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

// NewReconciler creates a new Reconciler
func NewReconciler(cfg *ReconcilerConfig) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		logger:    cfg.Logger.With(slog.String("component", "reconciler")),
		source:    cfg.Source,
		settler:   cfg.Settler,
		interval:  interval,
		grace:     cfg.Grace,
		batchSize: batch,
		now:       now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Reconciler started",
		slog.Duration("interval", r.interval),
		slog.Duration("grace", r.grace),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("Reconcile sweep failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep settles one batch of jobs completed more than grace ago and returns
// how many payments it created or found. Jobs completed within the grace
// window are left to the event path.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.grace)
	jobs, err := r.source.ListUnsettled(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled jobs: %w", err)
	}

	var (
		settled int
		errs    []error
	)
	for i := range jobs {
		job := &jobs[i]
		payment, err := r.settler.Settle(ctx, job)
		if err != nil {
			r.logger.Warn("Failed to settle job during reconcile",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		settled++
		r.logger.Info("Reconciled unsettled job",
			slog.String("job_id", job.ID),
			slog.String("payment_id", payment.ID),
		)
	}

	if len(jobs) > 0 {
		r.logger.Debug("Reconcile sweep finished",
			slog.Int("candidates", len(jobs)),
			slog.Int("settled", settled),
		)
	}
	return settled, errors.Join(errs...)
}
