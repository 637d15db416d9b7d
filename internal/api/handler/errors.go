package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/labor-dispatch/internal/api/dto"
	"github.com/cuongbtq/labor-dispatch/internal/dispatch"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/sobriety"
	"github.com/gin-gonic/gin"
)

// Error codes returned in dto.ErrorResponse.Error
const (
	CodeValidation       = "ValidationError"
	CodeNotFound         = "NotFound"
	CodeAlreadyAssigned  = "AlreadyAssigned"
	CodeConflict         = "Conflict"
	CodeCooldownActive   = "CooldownActive"
	CodeReviewPending    = "ReviewPending"
	CodeReviewNotAllowed = "ReviewNotAllowed"
	CodeSobrietyRequired = "SobrietyCheckRequired"
	CodeForbidden        = "Forbidden"
	CodeInvalidState     = "InvalidState"
	CodeExternalService  = "ExternalServiceError"
	CodeInternal         = "InternalError"
)

// respondError translates a service error into a status code and body.
func (b *base) respondError(c *gin.Context, err error) {
	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		c.JSON(http.StatusForbidden, dto.CooldownResponse{
			Error:            CodeCooldownActive,
			Message:          err.Error(),
			CooldownUntil:    cooldown.Until,
			RemainingSeconds: int64(cooldown.Remaining(b.now()).Seconds()),
		})
		return
	}

	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		b.logger.Error("Request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(status, dto.ErrorResponse{Error: code, Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyAssigned):
		return http.StatusBadRequest, CodeAlreadyAssigned
	case errors.Is(err, dispatch.ErrInvalidJob), errors.Is(err, sobriety.ErrEmptyImage),
		errors.Is(err, sobriety.ErrInvalidJobID):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrReviewPending):
		return http.StatusConflict, CodeReviewPending
	case errors.Is(err, domain.ErrReviewNotAllowed):
		return http.StatusConflict, CodeReviewNotAllowed
	case errors.Is(err, domain.ErrSobrietyRequired):
		return http.StatusForbidden, CodeSobrietyRequired
	case errors.Is(err, domain.ErrNotAssignee), errors.Is(err, domain.ErrNotJobOwner):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, domain.ErrPreconditionFailed):
		return http.StatusConflict, CodeInvalidState
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway, CodeExternalService
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: CodeValidation, Message: message})
}
