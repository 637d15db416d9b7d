package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type profileRow struct {
	ID           string              `db:"id"`
	Name         string              `db:"name"`
	Skills       pq.StringArray      `db:"skills"`
	Availability domain.Availability `db:"availability"`
}

func (r profileRow) toDomain() domain.LaborerProfile {
	return domain.LaborerProfile{
		ID:           r.ID,
		Name:         r.Name,
		Skills:       []string(r.Skills),
		Availability: r.Availability,
	}
}

// ProfileStore reads and updates laborer profiles
type ProfileStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewProfileStore creates a new ProfileStore
func NewProfileStore(pg *postgresql.Client, logger *slog.Logger) *ProfileStore {
	return &ProfileStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

func (s *ProfileStore) Get(ctx context.Context, laborerID string) (*domain.LaborerProfile, error) {
	var row profileRow
	query := `SELECT id, name, skills, availability FROM laborers WHERE id = $1`

	if err := s.db.GetContext(ctx, &row, query, laborerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLaborerNotFound
		}
		return nil, fmt.Errorf("failed to get laborer: %w", err)
	}

	p := row.toDomain()
	return &p, nil
}

// GetBySkill returns every profile listing skill, whatever its availability.
func (s *ProfileStore) GetBySkill(ctx context.Context, skill string) ([]domain.LaborerProfile, error) {
	query := `
		SELECT id, name, skills, availability
		FROM laborers
		WHERE $1 = ANY(skills)
		ORDER BY id
	`

	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, query, skill); err != nil {
		return nil, fmt.Errorf("failed to get laborers by skill: %w", err)
	}

	profiles := make([]domain.LaborerProfile, 0, len(rows))
	for _, r := range rows {
		profiles = append(profiles, r.toDomain())
	}
	return profiles, nil
}

func (s *ProfileStore) SetAvailability(ctx context.Context, laborerID string, availability domain.Availability) error {
	query := `
		UPDATE laborers
		SET availability = $2,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, laborerID, availability)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrLaborerNotFound
	}

	return nil
}

// Upsert registers a profile or replaces its name and skills. Availability is
// only set on insert.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.LaborerProfile) error {
	availability := p.Availability
	if availability == "" {
		availability = domain.AvailabilityUnavailable
	}

	query := `
		INSERT INTO laborers (id, name, skills, availability)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    skills = EXCLUDED.skills,
		    updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, p.ID, p.Name, pq.Array(p.Skills), availability); err != nil {
		return fmt.Errorf("failed to upsert laborer: %w", err)
	}
	return nil
}
