package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// SobrietyStore keeps check records in insertion order.
type SobrietyStore struct {
	mu      sync.RWMutex
	records []*domain.SobrietyCheck
}

// NewSobrietyStore creates an empty SobrietyStore
func NewSobrietyStore() *SobrietyStore {
	return &SobrietyStore{}
}

// Latest returns the laborer's most recent record by CheckedAt, or nil.
func (s *SobrietyStore) Latest(ctx context.Context, laborerID string) (*domain.SobrietyCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.SobrietyCheck
	for _, r := range s.records {
		if r.LaborerID != laborerID {
			continue
		}
		if latest == nil || !r.CheckedAt.Before(latest.CheckedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneCheck(latest), nil
}

func (s *SobrietyStore) Get(ctx context.Context, checkID string) (*domain.SobrietyCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == checkID {
			return cloneCheck(r), nil
		}
	}
	return nil, domain.ErrCheckNotFound
}

func (s *SobrietyStore) Insert(ctx context.Context, check *domain.SobrietyCheck) (*domain.SobrietyCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, cloneCheck(check))
	return cloneCheck(check), nil
}

func (s *SobrietyStore) Update(ctx context.Context, checkID string, update domain.SobrietyUpdate) (*domain.SobrietyCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID != checkID {
			continue
		}
		if update.From != "" && r.Status != update.From {
			return nil, domain.ErrCheckStatusConflict
		}
		r.Status = update.Status
		r.ReviewedAt = update.ReviewedAt
		r.ReviewedBy = update.ReviewedBy
		r.ReviewNote = update.ReviewNote
		r.CooldownUntil = update.CooldownUntil
		return cloneCheck(r), nil
	}
	return nil, domain.ErrCheckNotFound
}

func (s *SobrietyStore) ListByStatus(ctx context.Context, status domain.SobrietyStatus) ([]domain.SobrietyCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SobrietyCheck
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, *cloneCheck(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	return out, nil
}

func cloneCheck(r *domain.SobrietyCheck) *domain.SobrietyCheck {
	c := *r
	c.AnalysisResult = append([]byte(nil), r.AnalysisResult...)
	return &c
}
