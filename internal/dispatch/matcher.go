package dispatch

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// Matcher computes the candidate laborers for a job.
type Matcher struct {
	profiles ProfileStore
}

// NewMatcher creates a new Matcher
func NewMatcher(profiles ProfileStore) *Matcher {
	return &Matcher{profiles: profiles}
}

// Match returns every available laborer holding at least one of the job's
// required skills. A failed skill lookup fails the whole match so callers
// never notify a partial set.
func (m *Matcher) Match(ctx context.Context, job *domain.JobOffer) ([]string, error) {
	candidates := make(map[string]struct{})

	for _, skill := range job.RequiredSkills() {
		profiles, err := m.profiles.GetBySkill(ctx, skill)
		if err != nil {
			return nil, fmt.Errorf("failed to look up laborers for skill %q: %w", skill, err)
		}

		for _, p := range profiles {
			if p.Availability != domain.AvailabilityAvailable || !p.HasSkill(skill) {
				continue
			}
			candidates[p.ID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}
