package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// ProfileStore keeps laborer profiles in a map.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*domain.LaborerProfile
}

// NewProfileStore creates a store seeded with profiles.
func NewProfileStore(profiles ...domain.LaborerProfile) *ProfileStore {
	s := &ProfileStore{profiles: make(map[string]*domain.LaborerProfile)}
	for _, p := range profiles {
		s.put(p)
	}
	return s
}

// Upsert registers a profile or replaces its name and skills. Availability is
// only set on insert.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.LaborerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.profiles[p.ID]; ok {
		existing.Name = p.Name
		existing.Skills = append([]string(nil), p.Skills...)
		return nil
	}
	if p.Availability == "" {
		p.Availability = domain.AvailabilityUnavailable
	}
	p.Skills = append([]string(nil), p.Skills...)
	s.profiles[p.ID] = &p
	return nil
}

func (s *ProfileStore) put(p domain.LaborerProfile) {
	p.Skills = append([]string(nil), p.Skills...)
	s.profiles[p.ID] = &p
}

func (s *ProfileStore) Get(ctx context.Context, laborerID string) (*domain.LaborerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[laborerID]
	if !ok {
		return nil, domain.ErrLaborerNotFound
	}
	c := *p
	c.Skills = append([]string(nil), p.Skills...)
	return &c, nil
}

func (s *ProfileStore) GetBySkill(ctx context.Context, skill string) ([]domain.LaborerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.LaborerProfile
	for _, p := range s.profiles {
		if !p.HasSkill(skill) {
			continue
		}
		c := *p
		c.Skills = append([]string(nil), p.Skills...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ProfileStore) SetAvailability(ctx context.Context, laborerID string, availability domain.Availability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[laborerID]
	if !ok {
		return domain.ErrLaborerNotFound
	}
	p.Availability = availability
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
