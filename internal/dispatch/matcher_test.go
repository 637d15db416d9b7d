package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jobNeeding(skills ...string) *domain.JobOffer {
	job := &domain.JobOffer{ID: "job-1", Status: domain.JobStatusPending}
	for _, s := range skills {
		job.SkillsNeeded = append(job.SkillsNeeded, domain.SkillNeed{Skill: s, Quantity: 1, Rate: 80000})
	}
	return job
}

func seedProfiles() *memory.ProfileStore {
	return memory.NewProfileStore(
		domain.LaborerProfile{ID: "A", Skills: []string{"mason"}, Availability: domain.AvailabilityAvailable},
		domain.LaborerProfile{ID: "B", Skills: []string{"mason"}, Availability: domain.AvailabilityBusy},
		domain.LaborerProfile{ID: "C", Skills: []string{"carpenter"}, Availability: domain.AvailabilityAvailable},
		domain.LaborerProfile{ID: "D", Skills: []string{"mason", "plumber"}, Availability: domain.AvailabilityAvailable},
		domain.LaborerProfile{ID: "E", Skills: []string{"plumber"}, Availability: domain.AvailabilityUnavailable},
	)
}

type failingProfiles struct {
	*memory.ProfileStore
	failSkill string
}

func (f failingProfiles) GetBySkill(ctx context.Context, skill string) ([]domain.LaborerProfile, error) {
	if skill == f.failSkill {
		return nil, errors.New("connection reset")
	}
	return f.ProfileStore.GetBySkill(ctx, skill)
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name string
		job  *domain.JobOffer
		want []string
	}{
		{
			name: "single skill filters busy and unrelated laborers",
			job:  jobNeeding("mason"),
			want: []string{"A", "D"},
		},
		{
			name: "union across skills is deduplicated",
			job:  jobNeeding("mason", "plumber", "mason"),
			want: []string{"A", "D"},
		},
		{
			name: "unavailable laborer with matching skill is excluded",
			job:  jobNeeding("plumber"),
			want: []string{"D"},
		},
		{
			name: "no one holds the skill",
			job:  jobNeeding("painter"),
			want: []string{},
		},
		{
			name: "no skills",
			job:  jobNeeding(),
			want: []string{},
		},
	}

	m := NewMatcher(seedProfiles())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(context.Background(), tt.job)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatcher_LookupFailureFailsWholeMatch(t *testing.T) {
	m := NewMatcher(failingProfiles{ProfileStore: seedProfiles(), failSkill: "plumber"})

	got, err := m.Match(context.Background(), jobNeeding("mason", "plumber"))
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "plumber")
}
