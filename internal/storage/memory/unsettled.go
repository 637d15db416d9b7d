package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// Unsettled finds completed jobs without a payment, the in-memory
// counterpart of the postgres anti-join.
type Unsettled struct {
	jobs     *JobStore
	payments *PaymentStore
}

// NewUnsettled creates an Unsettled view over the two stores
func NewUnsettled(jobs *JobStore, payments *PaymentStore) *Unsettled {
	return &Unsettled{jobs: jobs, payments: payments}
}

func (u *Unsettled) ListUnsettled(ctx context.Context, completedBefore time.Time, limit int) ([]domain.JobOffer, error) {
	u.jobs.mu.Lock()
	var completed []domain.JobOffer
	for _, job := range u.jobs.jobs {
		if job.Status != domain.JobStatusCompleted || job.CompletedAt == nil {
			continue
		}
		if !job.CompletedAt.Before(completedBefore) {
			continue
		}
		completed = append(completed, *cloneJob(job))
	}
	u.jobs.mu.Unlock()

	sort.Slice(completed, func(i, j int) bool {
		a, b := completed[i], completed[j]
		if !a.CompletedAt.Equal(*b.CompletedAt) {
			return a.CompletedAt.Before(*b.CompletedAt)
		}
		return a.ID < b.ID
	})

	out := make([]domain.JobOffer, 0, len(completed))
	for _, job := range completed {
		if u.payments.hasPayment(job.ID) {
			continue
		}
		out = append(out, job)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
