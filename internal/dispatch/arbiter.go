package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// ArbiterConfig holds arbiter dependencies
type ArbiterConfig struct {
	Jobs      JobStore
	Profiles  ProfileStore
	Clearance Clearance
	Publisher CompletionPublisher
	// Notifier is optional; when set, the losing candidates of an accept
	// receive a job_taken push.
	Notifier *Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Arbiter owns every status transition of a job after it is posted.
//
// All transitions go through JobStore.TryTransition, so the winner of
// concurrent accepts is whoever's conditional update lands first in the
// store, independent of request arrival order.
type Arbiter struct {
	jobs      JobStore
	profiles  ProfileStore
	clearance Clearance
	publisher CompletionPublisher
	notifier  *Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewArbiter creates a new Arbiter
func NewArbiter(cfg *ArbiterConfig) *Arbiter {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Arbiter{
		jobs:      cfg.Jobs,
		profiles:  cfg.Profiles,
		clearance: cfg.Clearance,
		publisher: cfg.Publisher,
		notifier:  cfg.Notifier,
		logger:    cfg.Logger,
		now:       now,
	}
}

// Accept claims a pending job for laborerID. Exactly one of any number of
// concurrent calls for the same job succeeds; the others get
// domain.ErrAlreadyAssigned.
func (a *Arbiter) Accept(ctx context.Context, jobID, laborerID string) (*domain.JobOffer, error) {
	now := a.now().UTC()

	job, err := a.jobs.TryTransition(ctx, jobID, domain.JobStatusPending, domain.JobStatusAssigned, domain.TransitionFields{
		AssignedLaborerID: &laborerID,
		AssignedAt:        &now,
		UpdatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, a.explainConflict(ctx, jobID, laborerID)
		}
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to accept job: %w", err)
	}

	a.logger.Info("Job accepted",
		slog.String("job_id", jobID),
		slog.String("laborer_id", laborerID),
	)

	// Not atomic with the assignment. A failure here only skews future
	// matching, never this job.
	a.setAvailability(ctx, laborerID, domain.AvailabilityBusy, jobID)

	if a.notifier != nil {
		a.notifier.Retract(jobID, laborerID)
	}

	return job, nil
}

// explainConflict tells a lost race apart from a job that does not exist.
func (a *Arbiter) explainConflict(ctx context.Context, jobID, laborerID string) error {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return domain.ErrJobNotFound
		}
		return fmt.Errorf("failed to load job after conflict: %w", err)
	}

	a.logger.Info("Accept rejected - job no longer pending",
		slog.String("job_id", jobID),
		slog.String("laborer_id", laborerID),
		slog.String("status", string(job.Status)),
	)
	return domain.ErrAlreadyAssigned
}

// Start moves an assigned job to in_progress. Only the assignee may start,
// and only with a current passed sobriety check.
func (a *Arbiter) Start(ctx context.Context, jobID, laborerID string) (*domain.JobOffer, error) {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsAssignedTo(laborerID) {
		return nil, domain.ErrNotAssignee
	}
	if job.Status != domain.JobStatusAssigned {
		return nil, domain.ErrInvalidTransition
	}

	if a.clearance != nil {
		ok, err := a.clearance.Cleared(ctx, laborerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check sobriety clearance: %w", err)
		}
		if !ok {
			return nil, domain.ErrSobrietyRequired
		}
	}

	now := a.now().UTC()
	return a.transition(ctx, jobID, domain.JobStatusAssigned, domain.JobStatusInProgress, domain.TransitionFields{
		StartedAt: &now,
		UpdatedAt: now,
	})
}

// SubmitForReview marks the assignee's work as done and awaiting the customer.
func (a *Arbiter) SubmitForReview(ctx context.Context, jobID, laborerID string) (*domain.JobOffer, error) {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsAssignedTo(laborerID) {
		return nil, domain.ErrNotAssignee
	}
	if job.Status != domain.JobStatusInProgress {
		return nil, domain.ErrInvalidTransition
	}

	return a.transition(ctx, jobID, domain.JobStatusInProgress, domain.JobStatusReadyForReview, domain.TransitionFields{
		UpdatedAt: a.now().UTC(),
	})
}

// Complete is the customer's sign-off. The laborer is released and a
// completion event is handed to settlement.
func (a *Arbiter) Complete(ctx context.Context, jobID, customerID string) (*domain.JobOffer, error) {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if customerID != "" && job.CustomerID != customerID {
		return nil, domain.ErrNotJobOwner
	}
	if job.Status != domain.JobStatusReadyForReview {
		return nil, domain.ErrInvalidTransition
	}

	now := a.now().UTC()
	completed, err := a.transition(ctx, jobID, domain.JobStatusReadyForReview, domain.JobStatusCompleted, domain.TransitionFields{
		CompletedAt: &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	a.setAvailability(ctx, completed.Assignee(), domain.AvailabilityAvailable, jobID)

	if a.publisher != nil {
		if err := a.publisher.PublishJobCompleted(context.WithoutCancel(ctx), completed); err != nil {
			a.logger.Error("Failed to publish job completion",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}

	return completed, nil
}

// Cancel cancels a job that has not been submitted for review. Cancelling an
// assigned job releases its laborer.
func (a *Arbiter) Cancel(ctx context.Context, jobID string) (*domain.JobOffer, error) {
	job, err := a.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case domain.JobStatusPending, domain.JobStatusAssigned, domain.JobStatusInProgress:
	default:
		return nil, domain.ErrInvalidTransition
	}

	now := a.now().UTC()
	cancelled, err := a.transition(ctx, jobID, job.Status, domain.JobStatusCancelled, domain.TransitionFields{
		ClearAssignee: true,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, err
	}

	if assignee := job.Assignee(); assignee != "" {
		a.setAvailability(ctx, assignee, domain.AvailabilityAvailable, jobID)
	} else if a.notifier != nil {
		a.notifier.Retract(jobID, "")
	}

	a.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("previous_status", string(job.Status)),
	)
	return cancelled, nil
}

func (a *Arbiter) transition(ctx context.Context, jobID string, from, to domain.JobStatus, fields domain.TransitionFields) (*domain.JobOffer, error) {
	job, err := a.jobs.TryTransition(ctx, jobID, from, to, fields)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to move job to %s: %w", to, err)
	}

	a.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return job, nil
}

func (a *Arbiter) setAvailability(ctx context.Context, laborerID string, availability domain.Availability, jobID string) {
	if laborerID == "" {
		return
	}
	if err := a.profiles.SetAvailability(context.WithoutCancel(ctx), laborerID, availability); err != nil {
		a.logger.Warn("Failed to update laborer availability",
			slog.String("laborer_id", laborerID),
			slog.String("job_id", jobID),
			slog.String("availability", string(availability)),
			slog.String("error", err.Error()),
		)
	}
}
