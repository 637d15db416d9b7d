package dto

import (
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
)

type SubmitCheckRequest struct {
	LaborerID string `json:"laborerId" binding:"required"`
	JobID     string `json:"jobId"`
	// Image is base64, optionally as a data URL.
	Image    string `json:"image" binding:"required"`
	MimeType string `json:"mimeType"`
}

type RequestReviewRequest struct {
	LaborerID string `json:"laborerId" binding:"required"`
}

type ReviewDecisionRequest struct {
	Approve       *bool  `json:"approve" binding:"required"`
	Reason        string `json:"reason"`
	Reviewer      string `json:"reviewer"`
	FreshCooldown bool   `json:"freshCooldown"`
}

type SobrietyStatusResponse struct {
	*sobriety.State
	CooldownRemainingSeconds int64 `json:"cooldownRemainingSeconds"`
}

type CooldownResponse struct {
	Error            string    `json:"error"`
	Message          string    `json:"message"`
	CooldownUntil    time.Time `json:"cooldownUntil"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}
