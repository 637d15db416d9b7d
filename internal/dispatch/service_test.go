package dispatch

import (
	"context"
	"testing"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Post(t *testing.T) {
	jobs := memory.NewJobStore()
	pusher := newRecordingPusher("A")
	svc := NewService(jobs, NewMatcher(seedProfiles()), NewNotifier(&NotifierConfig{Pusher: pusher, Logger: discardLogger()}), discardLogger())

	res, err := svc.Post(context.Background(), NewJob{
		CustomerID: "cust-1",
		Title:      "Boundary wall",
		Location:   "Sector 12",
		SkillsNeeded: []domain.SkillNeed{
			{Skill: "mason", Quantity: 2, Rate: 70000},
			{Skill: "helper", Quantity: 1, Rate: 40000},
		},
	})
	require.NoError(t, err)
	require.NoError(t, res.DispatchErr)

	assert.Equal(t, domain.JobStatusPending, res.Job.Status)
	assert.Equal(t, int64(180000), res.Job.TotalAmount)
	assert.Equal(t, []string{"A", "D"}, res.Candidates)
	require.Len(t, res.Deliveries, 2)
	assert.True(t, res.Deliveries[0].Outcome.Delivered)
	assert.False(t, res.Deliveries[1].Outcome.Delivered)

	stored, err := svc.Get(context.Background(), res.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Job.ID, stored.ID)
}

func TestService_PostMatchFailureStillCreatesJob(t *testing.T) {
	jobs := memory.NewJobStore()
	pusher := newRecordingPusher("A", "D")
	profiles := failingProfiles{ProfileStore: seedProfiles(), failSkill: "mason"}
	svc := NewService(jobs, NewMatcher(profiles), NewNotifier(&NotifierConfig{Pusher: pusher, Logger: discardLogger()}), discardLogger())

	res, err := svc.Post(context.Background(), NewJob{
		CustomerID:   "cust-1",
		SkillsNeeded: []domain.SkillNeed{{Skill: "mason", Quantity: 1, Rate: 70000}},
	})
	require.NoError(t, err)
	assert.Error(t, res.DispatchErr)
	assert.Empty(t, res.Deliveries)
	assert.Empty(t, pusher.messages("A"))

	_, err = jobs.Get(context.Background(), res.Job.ID)
	assert.NoError(t, err)
}

func TestService_PostRejectsJobWithoutSkills(t *testing.T) {
	svc := NewService(memory.NewJobStore(), NewMatcher(seedProfiles()), NewNotifier(&NotifierConfig{Pusher: newRecordingPusher(), Logger: discardLogger()}), discardLogger())

	_, err := svc.Post(context.Background(), NewJob{
		SkillsNeeded: []domain.SkillNeed{{Skill: "mason", Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestService_List(t *testing.T) {
	jobs := memory.NewJobStore()
	svc := NewService(jobs, NewMatcher(seedProfiles()), NewNotifier(&NotifierConfig{Pusher: newRecordingPusher(), Logger: discardLogger()}), discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Post(ctx, NewJob{
			CustomerID:   "cust-1",
			SkillsNeeded: []domain.SkillNeed{{Skill: "mason", Quantity: 1, Rate: 1000}},
		})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, domain.JobFilter{Status: domain.JobStatusPending, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 2)
	require.NotNil(t, page.Next)

	page, err = svc.List(ctx, domain.JobFilter{Status: domain.JobStatusPending, PageSize: 2, Cursor: page.Next})
	require.NoError(t, err)
	assert.Len(t, page.Jobs, 1)
	assert.Nil(t, page.Next)

	page, err = svc.List(ctx, domain.JobFilter{Status: domain.JobStatusCompleted})
	require.NoError(t, err)
	assert.NotNil(t, page.Jobs)
	assert.Empty(t, page.Jobs)
}
