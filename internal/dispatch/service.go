package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/google/uuid"
)

// ErrInvalidJob is returned when a posted job has nothing to match on.
var ErrInvalidJob = errors.New("job must list at least one skill with a positive quantity")

// NewJob is a customer's job posting.
type NewJob struct {
	CustomerID   string
	Title        string
	Description  string
	Location     string
	SkillsNeeded []domain.SkillNeed
	// TotalAmount defaults to the sum of quantity * rate when zero.
	TotalAmount int64
}

// PostResult reports what happened to a posted job.
type PostResult struct {
	Job        *domain.JobOffer
	Candidates []string
	Deliveries []Delivery
	// DispatchErr is set when matching failed; the job is still posted but
	// nobody was notified.
	DispatchErr error
}

// Service posts jobs and fans out their offers.
type Service struct {
	jobs     JobStore
	matcher  *Matcher
	notifier *Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service
func NewService(jobs JobStore, matcher *Matcher, notifier *Notifier, logger *slog.Logger) *Service {
	return &Service{
		jobs:     jobs,
		matcher:  matcher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Post persists a pending job, then matches and notifies candidates.
// Delivery problems never fail the post.
func (s *Service) Post(ctx context.Context, req NewJob) (*PostResult, error) {
	total := req.TotalAmount
	valid := false
	var computed int64
	for _, need := range req.SkillsNeeded {
		if need.Skill == "" || need.Quantity <= 0 {
			continue
		}
		valid = true
		computed += int64(need.Quantity) * need.Rate
	}
	if !valid {
		return nil, ErrInvalidJob
	}
	if total == 0 {
		total = computed
	}

	now := s.now().UTC()
	job := &domain.JobOffer{
		ID:           uuid.New().String(),
		CustomerID:   req.CustomerID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		SkillsNeeded: req.SkillsNeeded,
		TotalAmount:  total,
		Status:       domain.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	result := &PostResult{Job: job}

	candidates, err := s.matcher.Match(ctx, job)
	if err != nil {
		s.logger.Error("Failed to match candidates",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		result.DispatchErr = err
		return result, nil
	}

	result.Candidates = candidates
	result.Deliveries = s.notifier.Notify(ctx, candidates, job)
	return result, nil
}

// Get returns a job by id.
func (s *Service) Get(ctx context.Context, jobID string) (*domain.JobOffer, error) {
	return s.jobs.Get(ctx, jobID)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is one page of a job listing. Next is nil on the last page.
type Page struct {
	Jobs []domain.JobOffer
	Next *domain.JobCursor
}

// List pages through jobs. Laborers use it with a pending status and their
// skill to catch offers pushed while they were offline.
func (s *Service) List(ctx context.Context, filter domain.JobFilter) (*Page, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}

	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	page := &Page{Jobs: jobs}
	if len(jobs) > filter.PageSize {
		page.Jobs = jobs[:filter.PageSize]
		last := page.Jobs[len(page.Jobs)-1]
		page.Next = &domain.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID}
	}
	if page.Jobs == nil {
		page.Jobs = []domain.JobOffer{}
	}
	return page, nil
}
