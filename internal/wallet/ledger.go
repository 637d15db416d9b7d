// Package wallet turns completed jobs into payment records and reports
// laborer earnings.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/google/uuid"
)

// ErrNotSettleable is returned for a job that is not completed or has no
// assignee.
var ErrNotSettleable = fmt.Errorf("%w: job cannot be settled", domain.ErrPreconditionFailed)

// PaymentStore persists payment records. InsertPayment must be idempotent on
// the job id.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p *domain.PaymentRecord) (*domain.PaymentRecord, bool, error)
	ListByLaborer(ctx context.Context, laborerID string) ([]domain.PaymentRecord, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, from, to domain.PaymentStatus, at time.Time) (*domain.PaymentRecord, error)
}

// Config holds ledger configuration
type Config struct {
	Store              PaymentStore
	Logger             *slog.Logger
	PlatformFeePercent float64
	MinWithdrawal      int64
	Now                func() time.Time
}

// Ledger settles jobs and summarizes wallets.
type Ledger struct {
	store         PaymentStore
	logger        *slog.Logger
	feePercent    float64
	minWithdrawal int64
	now           func() time.Time
}

// NewLedger creates a new Ledger
func NewLedger(cfg *Config) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:         cfg.Store,
		logger:        cfg.Logger,
		feePercent:    cfg.PlatformFeePercent,
		minWithdrawal: cfg.MinWithdrawal,
		now:           now,
	}
}

// Fee returns the platform fee for amount in minor units, rounded half-up.
func (l *Ledger) Fee(amount int64) int64 {
	if amount <= 0 || l.feePercent <= 0 {
		return 0
	}
	return int64(math.Floor(float64(amount)*l.feePercent/100 + 0.5))
}

// Settle records the payment for a completed job. Settling the same job again
// returns the existing record.
func (l *Ledger) Settle(ctx context.Context, job *domain.JobOffer) (*domain.PaymentRecord, error) {
	if job.Status != domain.JobStatusCompleted || job.Assignee() == "" {
		return nil, ErrNotSettleable
	}

	now := l.now().UTC()
	fee := l.Fee(job.TotalAmount)
	payment, created, err := l.store.InsertPayment(ctx, &domain.PaymentRecord{
		ID:          uuid.New().String(),
		JobID:       job.ID,
		LaborerID:   job.Assignee(),
		CustomerID:  job.CustomerID,
		Amount:      job.TotalAmount,
		PlatformFee: fee,
		NetAmount:   job.TotalAmount - fee,
		Status:      domain.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	if created {
		l.logger.Info("Payment recorded",
			slog.String("payment_id", payment.ID),
			slog.String("job_id", job.ID),
			slog.String("laborer_id", payment.LaborerID),
			slog.Int64("net_amount", payment.NetAmount),
		)
	} else {
		l.logger.Debug("Payment already recorded", slog.String("job_id", job.ID))
	}
	return payment, nil
}

// Summary is a laborer's wallet view. Amounts are net of platform fees.
type Summary struct {
	LaborerID     string                 `json:"laborerId"`
	TotalEarnings int64                  `json:"totalEarnings"`
	Pending       int64                  `json:"pending"`
	Available     int64                  `json:"available"`
	PaidOut       int64                  `json:"paidOut"`
	CompletedJobs int                    `json:"completedJobs"`
	CanWithdraw   bool                   `json:"canWithdraw"`
	MinWithdrawal int64                  `json:"minWithdrawal"`
	Payments      []domain.PaymentRecord `json:"payments"`
}

// Summary totals the laborer's payments.
func (l *Ledger) Summary(ctx context.Context, laborerID string) (*Summary, error) {
	payments, err := l.store.ListByLaborer(ctx, laborerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	s := &Summary{
		LaborerID:     laborerID,
		MinWithdrawal: l.minWithdrawal,
		Payments:      payments,
	}
	if s.Payments == nil {
		s.Payments = []domain.PaymentRecord{}
	}
	for _, p := range payments {
		s.TotalEarnings += p.NetAmount
		s.CompletedJobs++
		switch p.Status {
		case domain.PaymentPending:
			s.Pending += p.NetAmount
		case domain.PaymentApproved:
			s.Available += p.NetAmount
		case domain.PaymentPaid:
			s.PaidOut += p.NetAmount
		}
	}
	s.CanWithdraw = s.Available > 0 && s.Available >= l.minWithdrawal
	return s, nil
}

// Approve makes a pending payment available for withdrawal.
func (l *Ledger) Approve(ctx context.Context, paymentID string) (*domain.PaymentRecord, error) {
	payment, err := l.store.UpdatePaymentStatus(ctx, paymentID, domain.PaymentPending, domain.PaymentApproved, l.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPaymentState) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to approve payment: %w", err)
	}

	l.logger.Info("Payment approved",
		slog.String("payment_id", payment.ID),
		slog.String("laborer_id", payment.LaborerID),
	)
	return payment, nil
}
