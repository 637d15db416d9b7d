package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/dispatch"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/realtime"
	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
	"github.com/cuongbtq/labor-dispatch/internal/wallet"
)

// ProfileStore is the laborer profile access the API needs
type ProfileStore interface {
	Get(ctx context.Context, laborerID string) (*domain.LaborerProfile, error)
	Upsert(ctx context.Context, p domain.LaborerProfile) error
	SetAvailability(ctx context.Context, laborerID string, availability domain.Availability) error
}

// WebSocketConfig holds push channel timings
type WebSocketConfig struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteTimeout    time.Duration
	RegisterTimeout time.Duration
	ReadLimit       int64
	AllowedOrigins  []string
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger        *slog.Logger
	Jobs          *dispatch.Service
	Arbiter       *dispatch.Arbiter
	Profiles      ProfileStore
	Gate          *sobriety.Gate
	Ledger        *wallet.Ledger
	Registry      *realtime.Registry
	WebSocket     WebSocketConfig
	MaxImageBytes int
	Now           func() time.Time
}

type base struct {
	logger *slog.Logger
	now    func() time.Time
}

func newBase(deps *Dependencies) base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return base{logger: deps.Logger, now: now}
}
