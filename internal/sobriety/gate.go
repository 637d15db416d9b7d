// Package sobriety gates the start of work behind a time-boxed fitness check
// with a cooldown after failure and an administrator review path.
//
// States per laborer, derived from their latest record:
//
//	no check -> (submit) -> passed | failed | pending_review
//	failed   -> (cooldown elapses) -> submit again
//	failed   -> (request review)   -> pending_review
//	pending_review -> (admin)      -> passed | failed
package sobriety

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/google/uuid"
)

const (
	DefaultCooldown        = 5*time.Hour + 30*time.Minute
	DefaultAnalysisTimeout = 30 * time.Second
	DefaultValidity        = 12 * time.Hour
)

var (
	// ErrEmptyImage is returned when a submission carries no image.
	ErrEmptyImage = errors.New("image is required")

	// ErrInvalidJobID is returned when a submission names a job id that is
	// not a UUID.
	ErrInvalidJobID = errors.New("jobId must be a valid UUID")
)

// RecordStore persists check records. Latest must order by CheckedAt and
// returns nil without error when the laborer has no record.
type RecordStore interface {
	Latest(ctx context.Context, laborerID string) (*domain.SobrietyCheck, error)
	Get(ctx context.Context, checkID string) (*domain.SobrietyCheck, error)
	Insert(ctx context.Context, check *domain.SobrietyCheck) (*domain.SobrietyCheck, error)
	Update(ctx context.Context, checkID string, update domain.SobrietyUpdate) (*domain.SobrietyCheck, error)
	ListByStatus(ctx context.Context, status domain.SobrietyStatus) ([]domain.SobrietyCheck, error)
}

// Analyzer sends an image to the vision service and returns its raw answer.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (string, error)
}

// Config holds gate configuration
type Config struct {
	Store    RecordStore
	Analyzer Analyzer
	Logger   *slog.Logger
	// Cooldown blocks resubmission after a failed check.
	Cooldown time.Duration
	// AnalysisTimeout bounds a single call to the analyzer.
	AnalysisTimeout time.Duration
	// Validity is how long a passed check clears a laborer to start work.
	Validity time.Duration
	Now      func() time.Time
}

// Gate runs the sobriety state machine.
type Gate struct {
	store           RecordStore
	analyzer        Analyzer
	logger          *slog.Logger
	cooldown        time.Duration
	analysisTimeout time.Duration
	validity        time.Duration
	now             func() time.Time
}

// NewGate creates a new Gate
func NewGate(cfg *Config) *Gate {
	g := &Gate{
		store:           cfg.Store,
		analyzer:        cfg.Analyzer,
		logger:          cfg.Logger,
		cooldown:        cfg.Cooldown,
		analysisTimeout: cfg.AnalysisTimeout,
		validity:        cfg.Validity,
		now:             cfg.Now,
	}
	if g.cooldown <= 0 {
		g.cooldown = DefaultCooldown
	}
	if g.analysisTimeout <= 0 {
		g.analysisTimeout = DefaultAnalysisTimeout
	}
	if g.validity <= 0 {
		g.validity = DefaultValidity
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Submission is one capture sent for analysis.
type Submission struct {
	LaborerID string
	JobID     string
	Image     []byte
	MimeType  string
}

// Submit analyzes a capture and records the outcome. It refuses with a
// *domain.CooldownError while the latest failed check is cooling down, and
// with domain.ErrReviewPending while a manual review is open.
//
// Analysis problems never produce a pass: timeouts, service errors and
// unreadable answers are all recorded as failed, with cooldown.
func (g *Gate) Submit(ctx context.Context, sub Submission) (*domain.SobrietyCheck, error) {
	if len(sub.Image) == 0 {
		return nil, ErrEmptyImage
	}
	// checked before analysis so a failed verdict can always be stored
	if sub.JobID != "" {
		if _, err := uuid.Parse(sub.JobID); err != nil {
			return nil, ErrInvalidJobID
		}
	}

	latest, err := g.store.Latest(ctx, sub.LaborerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sobriety check: %w", err)
	}
	if latest != nil {
		now := g.now()
		if latest.CooldownActive(now) {
			return nil, &domain.CooldownError{Until: *latest.CooldownUntil}
		}
		if latest.Status == domain.SobrietyPendingReview {
			return nil, domain.ErrReviewPending
		}
	}

	verdict, err := g.analyze(ctx, sub)
	if err != nil {
		return nil, err
	}

	checkedAt := g.now().UTC()
	check := &domain.SobrietyCheck{
		ID:             uuid.New().String(),
		LaborerID:      sub.LaborerID,
		Status:         verdict.Status,
		AnalysisResult: verdict.JSON(),
		ImageReference: imageReference(sub.Image),
		CheckedAt:      checkedAt,
	}
	if sub.JobID != "" {
		jobID := sub.JobID
		check.JobID = &jobID
	}
	if check.Status == domain.SobrietyFailed {
		until := checkedAt.Add(g.cooldown)
		check.CooldownUntil = &until
	}

	saved, err := g.store.Insert(ctx, check)
	if err != nil {
		return nil, fmt.Errorf("failed to save sobriety check: %w", err)
	}

	g.logger.Info("Sobriety check recorded",
		slog.String("check_id", saved.ID),
		slog.String("laborer_id", saved.LaborerID),
		slog.String("status", string(saved.Status)),
		slog.String("reason", verdict.Reason),
	)
	return saved, nil
}

// analyze calls the analyzer under the gate's timeout and converts every
// failure mode into a failed verdict. Only cancellation by the caller is
// returned as an error, and nothing is recorded in that case.
func (g *Gate) analyze(ctx context.Context, sub Submission) (Verdict, error) {
	actx, cancel := context.WithTimeout(ctx, g.analysisTimeout)
	defer cancel()

	output, err := g.analyzer.Analyze(actx, sub.Image, sub.MimeType)
	if err == nil {
		return ParseVerdict(output), nil
	}

	if ctx.Err() != nil {
		return Verdict{}, fmt.Errorf("sobriety analysis abandoned: %w", ctx.Err())
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
		g.logger.Warn("Sobriety analysis timed out",
			slog.String("laborer_id", sub.LaborerID),
			slog.Duration("timeout", g.analysisTimeout),
		)
		return failedVerdict(ReasonAnalysisTimeout, domain.ErrAnalysisTimeout.Error()), nil
	}

	g.logger.Error("Sobriety analysis failed",
		slog.String("laborer_id", sub.LaborerID),
		slog.String("error", err.Error()),
	)
	return failedVerdict(ReasonExternalService, err.Error()), nil
}

// RequestManualReview moves the laborer's latest failed check to
// pending_review. It is refused for any other latest state, including a
// failed check an administrator has already reviewed.
func (g *Gate) RequestManualReview(ctx context.Context, laborerID string) (*domain.SobrietyCheck, error) {
	latest, err := g.store.Latest(ctx, laborerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sobriety check: %w", err)
	}
	if latest == nil {
		return nil, domain.ErrCheckNotFound
	}
	if latest.Status != domain.SobrietyFailed || latest.ReviewedAt != nil {
		return nil, domain.ErrReviewNotAllowed
	}

	updated, err := g.store.Update(ctx, latest.ID, domain.SobrietyUpdate{
		From:   domain.SobrietyFailed,
		Status: domain.SobrietyPendingReview,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCheckStatusConflict) {
			return nil, domain.ErrReviewNotAllowed
		}
		return nil, fmt.Errorf("failed to request manual review: %w", err)
	}

	g.logger.Info("Manual review requested",
		slog.String("check_id", updated.ID),
		slog.String("laborer_id", laborerID),
	)
	return updated, nil
}

// Decision is an administrator's ruling on a pending review.
type Decision struct {
	Approve  bool
	Reason   string
	Reviewer string
	// FreshCooldown restarts the cooldown on rejection; otherwise the
	// laborer may submit again immediately.
	FreshCooldown bool
}

// Review resolves a pending_review record. It is the only way out of
// pending_review. The write is conditional on the record still being
// pending, so of two concurrent decisions only one takes effect.
func (g *Gate) Review(ctx context.Context, checkID string, d Decision) (*domain.SobrietyCheck, error) {
	check, err := g.store.Get(ctx, checkID)
	if err != nil {
		return nil, err
	}
	if check.Status != domain.SobrietyPendingReview {
		return nil, domain.ErrReviewNotAllowed
	}

	now := g.now().UTC()
	update := domain.SobrietyUpdate{
		From:       domain.SobrietyPendingReview,
		Status:     domain.SobrietyPassed,
		ReviewedAt: &now,
	}
	if d.Reviewer != "" {
		update.ReviewedBy = &d.Reviewer
	}
	if d.Reason != "" {
		update.ReviewNote = &d.Reason
	}
	if !d.Approve {
		update.Status = domain.SobrietyFailed
		if d.FreshCooldown {
			until := now.Add(g.cooldown)
			update.CooldownUntil = &until
		}
	}

	updated, err := g.store.Update(ctx, checkID, update)
	if err != nil {
		if errors.Is(err, domain.ErrCheckStatusConflict) {
			g.logger.Info("Manual review already decided",
				slog.String("check_id", checkID),
				slog.String("reviewer", d.Reviewer),
			)
			return nil, domain.ErrReviewNotAllowed
		}
		return nil, fmt.Errorf("failed to save review decision: %w", err)
	}

	g.logger.Info("Manual review decided",
		slog.String("check_id", checkID),
		slog.String("laborer_id", updated.LaborerID),
		slog.String("status", string(updated.Status)),
		slog.String("reviewer", d.Reviewer),
	)
	return updated, nil
}

// State is what a laborer's client shows about their gate.
type State struct {
	Latest            *domain.SobrietyCheck `json:"latest,omitempty"`
	CooldownRemaining time.Duration         `json:"-"`
	CanSubmit         bool                  `json:"canSubmit"`
	CanRequestReview  bool                  `json:"canRequestReview"`
	Cleared           bool                  `json:"cleared"`
}

// Status derives the laborer's current gate state.
func (g *Gate) Status(ctx context.Context, laborerID string) (*State, error) {
	latest, err := g.store.Latest(ctx, laborerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sobriety check: %w", err)
	}

	now := g.now()
	st := &State{Latest: latest, CanSubmit: true}
	if latest == nil {
		return st, nil
	}

	if latest.CooldownActive(now) {
		st.CanSubmit = false
		st.CooldownRemaining = latest.CooldownUntil.Sub(now)
	}
	switch latest.Status {
	case domain.SobrietyPendingReview:
		st.CanSubmit = false
	case domain.SobrietyFailed:
		st.CanRequestReview = latest.ReviewedAt == nil
	case domain.SobrietyPassed:
		st.Cleared = g.isCurrentPass(latest, now)
	}
	return st, nil
}

// Cleared reports whether the laborer's latest check is a pass that is still
// within the validity window.
func (g *Gate) Cleared(ctx context.Context, laborerID string) (bool, error) {
	latest, err := g.store.Latest(ctx, laborerID)
	if err != nil {
		return false, fmt.Errorf("failed to load latest sobriety check: %w", err)
	}
	if latest == nil || latest.Status != domain.SobrietyPassed {
		return false, nil
	}
	return g.isCurrentPass(latest, g.now()), nil
}

// PendingReviews lists every record awaiting an administrator, oldest first.
func (g *Gate) PendingReviews(ctx context.Context) ([]domain.SobrietyCheck, error) {
	checks, err := g.store.ListByStatus(ctx, domain.SobrietyPendingReview)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}
	return checks, nil
}

func (g *Gate) isCurrentPass(check *domain.SobrietyCheck, now time.Time) bool {
	passedAt := check.CheckedAt
	if check.ReviewedAt != nil && check.ReviewedAt.After(passedAt) {
		passedAt = *check.ReviewedAt
	}
	return now.Sub(passedAt) <= g.validity
}

func imageReference(image []byte) string {
	sum := sha256.Sum256(image)
	return "sha256:" + hex.EncodeToString(sum[:])
}
