package domain

import (
	"encoding/json"
	"time"
)

// SobrietyStatus is the outcome of a fitness-for-duty check.
type SobrietyStatus string

const (
	SobrietyPassed        SobrietyStatus = "passed"
	SobrietyFailed        SobrietyStatus = "failed"
	SobrietyPendingReview SobrietyStatus = "pending_review"
)

// SobrietyCheck is one verification attempt.
//
// CooldownUntil is only set while Status is failed. ReviewedAt is only set
// once an administrator has decided a pending review.
type SobrietyCheck struct {
	ID             string          `json:"id" db:"id"`
	LaborerID      string          `json:"laborerId" db:"laborer_id"`
	JobID          *string         `json:"jobId,omitempty" db:"job_id"`
	Status         SobrietyStatus  `json:"status" db:"status"`
	AnalysisResult json.RawMessage `json:"analysisResult" db:"analysis_result"`
	ImageReference string          `json:"imageReference" db:"image_reference"`
	CheckedAt      time.Time       `json:"checkedAt" db:"checked_at"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty" db:"reviewed_at"`
	ReviewedBy     *string         `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewNote     *string         `json:"reviewNote,omitempty" db:"review_note"`
	CooldownUntil  *time.Time      `json:"cooldownUntil,omitempty" db:"cooldown_until"`
}

// CooldownActive reports whether the record blocks a new check at now.
func (c *SobrietyCheck) CooldownActive(now time.Time) bool {
	return c.Status == SobrietyFailed && c.CooldownUntil != nil && now.Before(*c.CooldownUntil)
}

// SobrietyUpdate lists the mutable fields of a check record. A non-empty
// From makes the update conditional on the stored status.
type SobrietyUpdate struct {
	From          SobrietyStatus
	Status        SobrietyStatus
	ReviewedAt    *time.Time
	ReviewedBy    *string
	ReviewNote    *string
	CooldownUntil *time.Time
}
