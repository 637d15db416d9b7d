package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `id, customer_id, title, description, skills_needed, location,
	total_amount, status, assigned_laborer_id, created_at, assigned_at,
	started_at, completed_at, updated_at`

// jobRow adds the JSONB skills column to the domain job.
type jobRow struct {
	domain.JobOffer
	SkillsJSON []byte `db:"skills_needed"`
}

func (r *jobRow) toDomain() (*domain.JobOffer, error) {
	job := r.JobOffer
	if len(r.SkillsJSON) > 0 {
		if err := json.Unmarshal(r.SkillsJSON, &job.SkillsNeeded); err != nil {
			return nil, fmt.Errorf("failed to decode skills_needed of job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

// JobStore persists jobs
type JobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore creates a new JobStore
func NewJobStore(pg *postgresql.Client, logger *slog.Logger) *JobStore {
	return &JobStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (s *JobStore) Create(ctx context.Context, job *domain.JobOffer) error {
	skills, err := json.Marshal(job.SkillsNeeded)
	if err != nil {
		return fmt.Errorf("failed to encode skills: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, customer_id, title, description, skills_needed, location,
			total_amount, status, assigned_laborer_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5::jsonb, $6,
			$7, $8, $9, $10, $11
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.CustomerID,
		job.Title,
		job.Description,
		string(skills),
		job.Location,
		job.TotalAmount,
		job.Status,
		job.AssignedLaborerID,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.JobOffer, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrJobNotFound
	}

	var row jobRow
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	if err := s.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// TryTransition moves the job from one status to another in a single
// conditional UPDATE. When the row's status is no longer from, or the job
// does not exist, nothing is written and domain.ErrStatusConflict is returned.
func (s *JobStore) TryTransition(ctx context.Context, jobID string, from, to domain.JobStatus, fields domain.TransitionFields) (*domain.JobOffer, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrStatusConflict
	}

	updatedAt := fields.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `
		UPDATE jobs
		SET status = $3,
		    assigned_laborer_id = CASE WHEN $4::boolean THEN NULL
		                               ELSE COALESCE($5::text, assigned_laborer_id) END,
		    assigned_at = COALESCE($6::timestamptz, assigned_at),
		    started_at = COALESCE($7::timestamptz, started_at),
		    completed_at = COALESCE($8::timestamptz, completed_at),
		    updated_at = $9
		WHERE id = $1
		  AND status = $2
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		jobID,
		from,
		to,
		fields.ClearAssignee,
		fields.AssignedLaborerID,
		fields.AssignedAt,
		fields.StartedAt,
		fields.CompletedAt,
		updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("Conditional job update matched no row",
				slog.String("job_id", jobID),
				slog.String("from", string(from)),
				slog.String("to", string(to)),
			)
			return nil, domain.ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update job status: %w", err)
	}

	return row.toDomain()
}

// List returns up to PageSize+1 jobs so the caller can detect a next page.
func (s *JobStore) List(ctx context.Context, filter domain.JobFilter) ([]domain.JobOffer, error) {
	query, args := buildListQuery(filter)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.JobOffer, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func buildListQuery(filter domain.JobFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`)
	args := []any{}
	argIdx := 1

	if filter.CustomerID != "" {
		fmt.Fprintf(&sb, " AND customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}

	if filter.AssignedLaborerID != "" {
		fmt.Fprintf(&sb, " AND assigned_laborer_id = $%d", argIdx)
		args = append(args, filter.AssignedLaborerID)
		argIdx++
	}

	if filter.Status != "" {
		fmt.Fprintf(&sb, " AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Skill != "" {
		fmt.Fprintf(&sb, " AND skills_needed @> jsonb_build_array(jsonb_build_object('skill', $%d::text))", argIdx)
		args = append(args, filter.Skill)
		argIdx++
	}

	if filter.Cursor != nil {
		fmt.Fprintf(&sb, " AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	sb.WriteString(" ORDER BY created_at DESC, id DESC")

	if filter.PageSize > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", argIdx)
		args = append(args, filter.PageSize+1)
	}

	return sb.String(), args
}

// ListUnsettled returns completed jobs that have no payment row and were
// completed before completedBefore, oldest first.
func (s *JobStore) ListUnsettled(ctx context.Context, completedBefore time.Time, limit int) ([]domain.JobOffer, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs j
		WHERE j.status = 'completed'
		  AND j.completed_at < $1
		  AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.job_id = j.id)
		ORDER BY j.completed_at, j.id
		LIMIT $2`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, completedBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list unsettled jobs: %w", err)
	}

	jobs := make([]domain.JobOffer, 0, len(rows))
	for i := range rows {
		job, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
