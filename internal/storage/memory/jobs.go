// Package memory holds mutex-guarded stores with the same semantics as the
// postgres ones. They back local runs (storage.driver: memory) and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// JobStore keeps jobs in a map.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.JobOffer
}

// NewJobStore creates an empty JobStore
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.JobOffer)}
}

func (s *JobStore) Create(ctx context.Context, job *domain.JobOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.JobOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// TryTransition is the compare-and-swap on status; the whole check and
// update run under the store lock.
func (s *JobStore) TryTransition(ctx context.Context, jobID string, from, to domain.JobStatus, fields domain.TransitionFields) (*domain.JobOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != from {
		return nil, domain.ErrStatusConflict
	}

	job.Status = to
	if fields.ClearAssignee {
		job.AssignedLaborerID = nil
	} else if fields.AssignedLaborerID != nil {
		id := *fields.AssignedLaborerID
		job.AssignedLaborerID = &id
	}
	if fields.AssignedAt != nil {
		job.AssignedAt = timePtr(*fields.AssignedAt)
	}
	if fields.StartedAt != nil {
		job.StartedAt = timePtr(*fields.StartedAt)
	}
	if fields.CompletedAt != nil {
		job.CompletedAt = timePtr(*fields.CompletedAt)
	}
	if !fields.UpdatedAt.IsZero() {
		job.UpdatedAt = fields.UpdatedAt
	}

	return cloneJob(job), nil
}

func cloneJob(job *domain.JobOffer) *domain.JobOffer {
	c := *job
	c.SkillsNeeded = append([]domain.SkillNeed(nil), job.SkillsNeeded...)
	if job.AssignedLaborerID != nil {
		id := *job.AssignedLaborerID
		c.AssignedLaborerID = &id
	}
	if job.AssignedAt != nil {
		c.AssignedAt = timePtr(*job.AssignedAt)
	}
	if job.StartedAt != nil {
		c.StartedAt = timePtr(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		c.CompletedAt = timePtr(*job.CompletedAt)
	}
	return &c
}

// List returns up to PageSize+1 jobs matching filter, newest first, so the
// caller can tell whether another page exists.
func (s *JobStore) List(ctx context.Context, filter domain.JobFilter) ([]domain.JobOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.JobOffer
	for _, job := range s.jobs {
		if filter.CustomerID != "" && job.CustomerID != filter.CustomerID {
			continue
		}
		if filter.AssignedLaborerID != "" && !job.IsAssignedTo(filter.AssignedLaborerID) {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Skill != "" && !job.NeedsSkill(filter.Skill) {
			continue
		}
		if filter.Cursor != nil && !filter.Cursor.After(job) {
			continue
		}
		out = append(out, *cloneJob(job))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}
