package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error classes. Concrete errors below wrap one of these so callers can
// branch on the class with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrExternalService    = errors.New("external service failure")
)

var (
	// ErrJobNotFound is returned when a job cannot be found
	ErrJobNotFound = fmt.Errorf("job %w", ErrNotFound)

	// ErrLaborerNotFound is returned when a laborer profile cannot be found
	ErrLaborerNotFound = fmt.Errorf("laborer %w", ErrNotFound)

	// ErrCheckNotFound is returned when a sobriety check cannot be found
	ErrCheckNotFound = fmt.Errorf("sobriety check %w", ErrNotFound)

	// ErrPaymentNotFound is returned when a payment record cannot be found
	ErrPaymentNotFound = fmt.Errorf("payment %w", ErrNotFound)

	// ErrAlreadyAssigned is returned to every accept that loses the race
	ErrAlreadyAssigned = fmt.Errorf("%w: job already assigned", ErrConflict)

	// ErrStatusConflict is returned by a conditional transition whose
	// from-status no longer holds
	ErrStatusConflict = fmt.Errorf("%w: job status changed", ErrConflict)

	// ErrCheckStatusConflict is returned by a conditional sobriety check
	// update whose from-status no longer holds
	ErrCheckStatusConflict = fmt.Errorf("%w: sobriety check status changed", ErrConflict)

	// ErrInvalidTransition is returned for a transition the job lifecycle forbids
	ErrInvalidTransition = fmt.Errorf("%w: invalid job status transition", ErrPreconditionFailed)

	// ErrNotAssignee is returned when a laborer acts on a job they do not hold
	ErrNotAssignee = fmt.Errorf("%w: laborer is not assigned to this job", ErrPreconditionFailed)

	// ErrNotJobOwner is returned when a customer acts on someone else's job
	ErrNotJobOwner = fmt.Errorf("%w: job belongs to another customer", ErrPreconditionFailed)

	// ErrSobrietyRequired is returned when work is started without a passed check
	ErrSobrietyRequired = fmt.Errorf("%w: a passed sobriety check is required", ErrPreconditionFailed)

	// ErrCooldownActive is the class of CooldownError
	ErrCooldownActive = fmt.Errorf("%w: sobriety check cooldown active", ErrPreconditionFailed)

	// ErrReviewPending is returned when a check is submitted while a manual review is open
	ErrReviewPending = fmt.Errorf("%w: manual review pending", ErrPreconditionFailed)

	// ErrReviewNotAllowed is returned when review is requested or decided from the wrong state
	ErrReviewNotAllowed = fmt.Errorf("%w: manual review not allowed in current state", ErrPreconditionFailed)

	// ErrPaymentState is returned when a payment cannot move to the requested status
	ErrPaymentState = fmt.Errorf("%w: payment status does not allow this change", ErrPreconditionFailed)

	// ErrAnalysisTimeout is returned when the vision analysis does not answer in time
	ErrAnalysisTimeout = fmt.Errorf("%w: analysis timeout", ErrExternalService)
)

// CooldownError reports when a laborer may submit the next check.
type CooldownError struct {
	Until time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("sobriety check cooldown active until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *CooldownError) Unwrap() error {
	return ErrCooldownActive
}

// Remaining returns the cooldown left at now, never negative.
func (e *CooldownError) Remaining(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}
