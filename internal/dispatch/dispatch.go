// Package dispatch turns a posted job into offers, arbitrates the race of
// laborers accepting it, and drives the job through its lifecycle.
package dispatch

import (
	"context"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/realtime"
)

// ProfileStore reads laborer profiles and writes their availability.
type ProfileStore interface {
	GetBySkill(ctx context.Context, skill string) ([]domain.LaborerProfile, error)
	SetAvailability(ctx context.Context, laborerID string, availability domain.Availability) error
}

// JobStore persists jobs. TryTransition must be atomic with respect to every
// other transition of the same job: it applies to and fields only when the
// stored status equals from, and returns domain.ErrStatusConflict otherwise.
type JobStore interface {
	Create(ctx context.Context, job *domain.JobOffer) error
	Get(ctx context.Context, jobID string) (*domain.JobOffer, error)
	TryTransition(ctx context.Context, jobID string, from, to domain.JobStatus, fields domain.TransitionFields) (*domain.JobOffer, error)
	// List returns up to PageSize+1 jobs, newest first.
	List(ctx context.Context, filter domain.JobFilter) ([]domain.JobOffer, error)
}

// Pusher delivers a message to a laborer's live channel.
type Pusher interface {
	Send(identity string, msg realtime.Message) realtime.Outcome
}

// Clearance answers whether a laborer may start work.
type Clearance interface {
	Cleared(ctx context.Context, laborerID string) (bool, error)
}

// CompletionPublisher announces completed jobs to settlement.
type CompletionPublisher interface {
	PublishJobCompleted(ctx context.Context, job *domain.JobOffer) error
}
