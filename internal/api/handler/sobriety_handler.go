package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cuongbtq/labor-dispatch/internal/api/dto"
	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultMaxImageBytes = 5 << 20

// SobrietyHandler handles sobriety check and manual review requests
type SobrietyHandler struct {
	base
	gate          *sobriety.Gate
	maxImageBytes int
}

// NewSobrietyHandler creates a new SobrietyHandler instance
func NewSobrietyHandler(deps *Dependencies) *SobrietyHandler {
	maxBytes := deps.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &SobrietyHandler{
		base:          newBase(deps),
		gate:          deps.Gate,
		maxImageBytes: maxBytes,
	}
}

// SubmitCheck handles POST /api/v1/sobriety-check
// Analyzes a capture; a failed result is still 200 and carries the cooldown
func (h *SobrietyHandler) SubmitCheck(c *gin.Context) {
	// base64 inflates by 4/3; leave room for the rest of the body
	limit := int64(h.maxImageBytes)*4/3 + 4096
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req dto.SubmitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
				Error:   CodeValidation,
				Message: "image too large",
			})
			return
		}
		badRequest(c, err.Error())
		return
	}

	if req.JobID != "" {
		if _, err := uuid.Parse(req.JobID); err != nil {
			badRequest(c, "jobId must be a valid UUID")
			return
		}
	}

	image, mimeType, err := decodeImage(req.Image, req.MimeType)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if len(image) > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, dto.ErrorResponse{
			Error:   CodeValidation,
			Message: "image too large",
		})
		return
	}

	check, err := h.gate.Submit(c.Request.Context(), sobriety.Submission{
		LaborerID: req.LaborerID,
		JobID:     req.JobID,
		Image:     image,
		MimeType:  mimeType,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, check)
}

// RequestReview handles POST /api/v1/sobriety-check/request-review
func (h *SobrietyHandler) RequestReview(c *gin.Context) {
	var req dto.RequestReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	check, err := h.gate.RequestManualReview(c.Request.Context(), req.LaborerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, check)
}

// GetStatus handles GET /api/v1/sobriety-check/status/:laborer_id
func (h *SobrietyHandler) GetStatus(c *gin.Context) {
	state, err := h.gate.Status(c.Request.Context(), c.Param("laborer_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SobrietyStatusResponse{
		State:                    state,
		CooldownRemainingSeconds: int64(state.CooldownRemaining.Seconds()),
	})
}

// ListReviews handles GET /api/v1/admin/sobriety-reviews
func (h *SobrietyHandler) ListReviews(c *gin.Context) {
	reviews, err := h.gate.PendingReviews(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// DecideReview handles POST /api/v1/admin/sobriety-reviews/:check_id
func (h *SobrietyHandler) DecideReview(c *gin.Context) {
	checkID, ok := uuidParam(c, "check_id")
	if !ok {
		return
	}

	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	check, err := h.gate.Review(c.Request.Context(), checkID, sobriety.Decision{
		Approve:       *req.Approve,
		Reason:        req.Reason,
		Reviewer:      req.Reviewer,
		FreshCooldown: req.FreshCooldown,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, check)
}

// decodeImage accepts plain base64 or a data URL. A data URL's media type
// wins over the declared one.
func decodeImage(encoded, mimeType string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("image data URL must be base64 encoded")
		}
		mimeType = strings.TrimSuffix(header, ";base64")
		encoded = payload
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("image must be base64 encoded")
	}
	return image, mimeType, nil
}
