package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/shared/postgresql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, job_id, laborer_id, customer_id, amount, platform_fee,
	net_amount, status, created_at, updated_at`

// PaymentStore persists payment records
type PaymentStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPaymentStore creates a new PaymentStore
func NewPaymentStore(pg *postgresql.Client, logger *slog.Logger) *PaymentStore {
	return &PaymentStore{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// InsertPayment stores p unless the job already has a payment. The unique
// job_id constraint makes concurrent settlements of one job collapse into a
// single row; the loser reads it back with created=false.
func (s *PaymentStore) InsertPayment(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error) {
	query := `
		INSERT INTO payments (
			id, job_id, laborer_id, customer_id, amount, platform_fee,
			net_amount, status, created_at, updated_at
		) VALUES (
			:id, :job_id, :laborer_id, :customer_id, :amount, :platform_fee,
			:net_amount, :status, :created_at, :updated_at
		)
		ON CONFLICT (job_id) DO NOTHING
		RETURNING ` + paymentColumns

	rows, err := s.db.NamedQueryContext(ctx, query, p)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert payment: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var saved domain.PaymentRecord
		if err := rows.StructScan(&saved); err != nil {
			return nil, false, fmt.Errorf("failed to scan payment: %w", err)
		}
		return &saved, true, nil
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to insert payment: %w", err)
	}

	var existing domain.PaymentRecord
	query = `SELECT ` + paymentColumns + ` FROM payments WHERE job_id = $1`
	if err := s.db.GetContext(ctx, &existing, query, p.JobID); err != nil {
		return nil, false, fmt.Errorf("failed to get existing payment: %w", err)
	}

	s.logger.Debug("Payment already exists for job",
		slog.String("job_id", p.JobID),
		slog.String("payment_id", existing.ID),
	)
	return &existing, false, nil
}

func (s *PaymentStore) ListByLaborer(ctx context.Context, laborerID string) ([]domain.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE laborer_id = $1
		ORDER BY created_at DESC
	`

	payments := []domain.PaymentRecord{}
	if err := s.db.SelectContext(ctx, &payments, query, laborerID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// UpdatePaymentStatus moves a payment from one status to another with a
// conditional UPDATE.
func (s *PaymentStore) UpdatePaymentStatus(ctx context.Context, paymentID string, from, to domain.PaymentStatus, at time.Time) (*domain.PaymentRecord, error) {
	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, domain.ErrPaymentNotFound
	}

	query := `
		UPDATE payments
		SET status = $3,
		    updated_at = $4
		WHERE id = $1
		  AND status = $2
		RETURNING ` + paymentColumns

	var saved domain.PaymentRecord
	err := s.db.GetContext(ctx, &saved, query, paymentID, from, to, at)
	if err == nil {
		return &saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, paymentID); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if !exists {
		return nil, domain.ErrPaymentNotFound
	}
	return nil, domain.ErrPaymentState
}
