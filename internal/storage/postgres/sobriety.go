package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const checkColumns = `id, laborer_id, job_id, status, analysis_result, image_reference,
	checked_at, reviewed_at, reviewed_by, review_note, cooldown_until`

// SobrietyStore persists sobriety check records
type SobrietyStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSobrietyStore creates a new SobrietyStore
func NewSobrietyStore(pg *postgresql.Client, logger *slog.Logger) *SobrietyStore {
	return &SobrietyStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Latest returns the laborer's most recent record, or nil when there is none.
func (s *SobrietyStore) Latest(ctx context.Context, laborerID string) (*domain.SobrietyCheck, error) {
	query := `
		SELECT ` + checkColumns + `
		FROM sobriety_checks
		WHERE laborer_id = $1
		ORDER BY checked_at DESC
		LIMIT 1
	`

	var check domain.SobrietyCheck
	if err := s.db.GetContext(ctx, &check, query, laborerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest sobriety check: %w", err)
	}
	return &check, nil
}

func (s *SobrietyStore) Get(ctx context.Context, checkID string) (*domain.SobrietyCheck, error) {
	if _, err := uuid.Parse(checkID); err != nil {
		return nil, domain.ErrCheckNotFound
	}

	var check domain.SobrietyCheck
	query := `SELECT ` + checkColumns + ` FROM sobriety_checks WHERE id = $1`

	if err := s.db.GetContext(ctx, &check, query, checkID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCheckNotFound
		}
		return nil, fmt.Errorf("failed to get sobriety check: %w", err)
	}
	return &check, nil
}

func (s *SobrietyStore) Insert(ctx context.Context, check *domain.SobrietyCheck) (*domain.SobrietyCheck, error) {
	query := `
		INSERT INTO sobriety_checks (
			id, laborer_id, job_id, status, analysis_result, image_reference,
			checked_at, cooldown_until
		) VALUES (
			$1, $2, $3, $4, $5::jsonb, $6,
			$7, $8
		)
		RETURNING ` + checkColumns

	analysis := string(check.AnalysisResult)
	if analysis == "" {
		analysis = "{}"
	}

	var saved domain.SobrietyCheck
	err := s.db.GetContext(ctx, &saved, query,
		check.ID,
		check.LaborerID,
		check.JobID,
		check.Status,
		analysis,
		check.ImageReference,
		check.CheckedAt,
		check.CooldownUntil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sobriety check: %w", err)
	}
	return &saved, nil
}

// Update overwrites the mutable columns of a record. With update.From set
// the row only changes while its status still equals From.
func (s *SobrietyStore) Update(ctx context.Context, checkID string, update domain.SobrietyUpdate) (*domain.SobrietyCheck, error) {
	if _, err := uuid.Parse(checkID); err != nil {
		return nil, domain.ErrCheckNotFound
	}

	query := `
		UPDATE sobriety_checks
		SET status = $2,
		    reviewed_at = $3,
		    reviewed_by = $4,
		    review_note = $5,
		    cooldown_until = $6
		WHERE id = $1
		  AND ($7::text = '' OR status = $7::text)
		RETURNING ` + checkColumns

	var saved domain.SobrietyCheck
	err := s.db.GetContext(ctx, &saved, query,
		checkID,
		update.Status,
		update.ReviewedAt,
		update.ReviewedBy,
		update.ReviewNote,
		update.CooldownUntil,
		string(update.From),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainMissedUpdate(ctx, checkID, update.From)
		}
		return nil, fmt.Errorf("failed to update sobriety check: %w", err)
	}
	return &saved, nil
}

// explainMissedUpdate tells a missing record apart from a lost conditional update.
func (s *SobrietyStore) explainMissedUpdate(ctx context.Context, checkID string, from domain.SobrietyStatus) error {
	if from == "" {
		return domain.ErrCheckNotFound
	}
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM sobriety_checks WHERE id = $1)`, checkID); err != nil {
		return fmt.Errorf("failed to look up sobriety check: %w", err)
	}
	if !exists {
		return domain.ErrCheckNotFound
	}
	s.logger.Debug("Conditional sobriety check update matched no row",
		slog.String("check_id", checkID),
		slog.String("from", string(from)),
	)
	return domain.ErrCheckStatusConflict
}

func (s *SobrietyStore) ListByStatus(ctx context.Context, status domain.SobrietyStatus) ([]domain.SobrietyCheck, error) {
	query := `
		SELECT ` + checkColumns + `
		FROM sobriety_checks
		WHERE status = $1
		ORDER BY checked_at ASC
	`

	checks := []domain.SobrietyCheck{}
	if err := s.db.SelectContext(ctx, &checks, query, status); err != nil {
		return nil, fmt.Errorf("failed to list sobriety checks: %w", err)
	}
	return checks, nil
}
