package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// PaymentStore keeps payment records keyed by job.
type PaymentStore struct {
	mu    sync.RWMutex
	byJob map[string]*domain.PaymentRecord
}

// NewPaymentStore creates an empty PaymentStore
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{byJob: make(map[string]*domain.PaymentRecord)}
}

// InsertPayment stores p unless the job already has a payment, in which case
// the existing record is returned with created=false.
func (s *PaymentStore) InsertPayment(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byJob[p.JobID]; ok {
		c := *existing
		return &c, false, nil
	}
	c := *p
	s.byJob[p.JobID] = &c
	out := c
	return &out, true, nil
}

func (s *PaymentStore) ListByLaborer(ctx context.Context, laborerID string) ([]domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PaymentRecord
	for _, p := range s.byJob {
		if p.LaborerID == laborerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *PaymentStore) UpdatePaymentStatus(ctx context.Context, paymentID string, from, to domain.PaymentStatus, at time.Time) (*domain.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byJob {
		if p.ID != paymentID {
			continue
		}
		if p.Status != from {
			return nil, domain.ErrPaymentState
		}
		p.Status = to
		p.UpdatedAt = at
		c := *p
		return &c, nil
	}
	return nil, domain.ErrPaymentNotFound
}

func (s *PaymentStore) hasPayment(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byJob[jobID]
	return ok
}
