package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to the database named by DISPATCH_TEST_DB_* and
// applies the schema. Tests are skipped when DISPATCH_TEST_DB_HOST is unset.
func newTestClient(t *testing.T) (*postgresql.Client, *slog.Logger) {
	t.Helper()
	host := os.Getenv("DISPATCH_TEST_DB_HOST")
	if host == "" {
		t.Skip("DISPATCH_TEST_DB_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("DISPATCH_TEST_DB_PORT"))
	if port == 0 {
		port = 5432
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	client, err := postgresql.NewClient(ctx, &postgresql.Config{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DISPATCH_TEST_DB_USER"),
		Password: os.Getenv("DISPATCH_TEST_DB_PASSWORD"),
		Database: os.Getenv("DISPATCH_TEST_DB_NAME"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, Migrate(ctx, client, logger))
	return client, logger
}

func TestIntegration_AcceptRace(t *testing.T) {
	client, logger := newTestClient(t)
	ctx := context.Background()
	jobs := NewJobStore(client, logger)

	now := time.Now().UTC().Truncate(time.Microsecond)
	job := &domain.JobOffer{
		ID:           uuid.NewString(),
		CustomerID:   "cust-it",
		Title:        "Wall repair",
		SkillsNeeded: []domain.SkillNeed{{Skill: "mason", Quantity: 1, Rate: 350000}},
		TotalAmount:  350000,
		Status:       domain.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, jobs.Create(ctx, job))

	const contenders = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losses  int
	)
	for i := 0; i < contenders; i++ {
		laborerID := "laborer-" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := time.Now().UTC()
			_, err := jobs.TryTransition(ctx, job.ID, domain.JobStatusPending, domain.JobStatusAssigned, domain.TransitionFields{
				AssignedLaborerID: &laborerID,
				AssignedAt:        &at,
				UpdatedAt:         at,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, laborerID)
			case errors.Is(err, domain.ErrStatusConflict):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, losses)

	stored, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAssigned, stored.Status)
	assert.Equal(t, winners[0], stored.Assignee())
}

func TestIntegration_ProfilesBySkill(t *testing.T) {
	client, logger := newTestClient(t)
	ctx := context.Background()
	profiles := NewProfileStore(client, logger)

	suffix := uuid.NewString()[:8]
	skill := "mason-" + suffix
	available := "it-a-" + suffix
	busy := "it-b-" + suffix

	require.NoError(t, profiles.Upsert(ctx, domain.LaborerProfile{ID: available, Name: "A", Skills: []string{skill}}))
	require.NoError(t, profiles.Upsert(ctx, domain.LaborerProfile{ID: busy, Name: "B", Skills: []string{skill, "helper"}}))
	require.NoError(t, profiles.SetAvailability(ctx, available, domain.AvailabilityAvailable))
	require.NoError(t, profiles.SetAvailability(ctx, busy, domain.AvailabilityBusy))

	found, err := profiles.GetBySkill(ctx, skill)
	require.NoError(t, err)
	ids := make(map[string]domain.Availability, len(found))
	for _, p := range found {
		ids[p.ID] = p.Availability
	}
	assert.Equal(t, domain.AvailabilityAvailable, ids[available])
	assert.Equal(t, domain.AvailabilityBusy, ids[busy])

	err = profiles.SetAvailability(ctx, "it-missing-"+suffix, domain.AvailabilityBusy)
	assert.ErrorIs(t, err, domain.ErrLaborerNotFound)
}

func TestIntegration_ListUnsettled(t *testing.T) {
	client, logger := newTestClient(t)
	ctx := context.Background()
	jobs := NewJobStore(client, logger)
	payments := NewPaymentStore(client, logger)

	now := time.Now().UTC().Truncate(time.Microsecond)
	complete := func() string {
		job := &domain.JobOffer{
			ID:           uuid.NewString(),
			CustomerID:   "cust-it",
			Title:        "Tiling",
			SkillsNeeded: []domain.SkillNeed{{Skill: "tiler", Quantity: 1, Rate: 200000}},
			TotalAmount:  200000,
			Status:       domain.JobStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, jobs.Create(ctx, job))
		laborerID := "it-laborer"
		_, err := jobs.TryTransition(ctx, job.ID, domain.JobStatusPending, domain.JobStatusCompleted, domain.TransitionFields{
			AssignedLaborerID: &laborerID,
			CompletedAt:       &now,
			UpdatedAt:         now,
		})
		require.NoError(t, err)
		return job.ID
	}

	unpaid := complete()
	paid := complete()
	_, _, err := payments.InsertPayment(ctx, &domain.PaymentRecord{
		ID:         uuid.NewString(),
		JobID:      paid,
		LaborerID:  "it-laborer",
		CustomerID: "cust-it",
		Amount:     200000,
		NetAmount:  200000,
		Status:     domain.PaymentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	require.NoError(t, err)

	found, err := jobs.ListUnsettled(ctx, now.Add(time.Hour), 1000)
	require.NoError(t, err)
	ids := make(map[string]bool, len(found))
	for _, job := range found {
		ids[job.ID] = true
		assert.Equal(t, domain.JobStatusCompleted, job.Status)
	}
	assert.True(t, ids[unpaid])
	assert.False(t, ids[paid])

	// the grace window excludes jobs completed after the cut-off
	found, err = jobs.ListUnsettled(ctx, now, 1000)
	require.NoError(t, err)
	for _, job := range found {
		assert.NotEqual(t, unpaid, job.ID)
	}
}
