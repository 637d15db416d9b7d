package handler

import (
	"net/http"

	"github.com/cuongbtq/labor-dispatch/internal/api/dto"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/gin-gonic/gin"
)

// LaborerHandler handles laborer profile requests
type LaborerHandler struct {
	base
	profiles ProfileStore
}

// NewLaborerHandler creates a new LaborerHandler instance
func NewLaborerHandler(deps *Dependencies) *LaborerHandler {
	return &LaborerHandler{
		base:     newBase(deps),
		profiles: deps.Profiles,
	}
}

// GetProfile handles GET /api/v1/laborers/:laborer_id
func (h *LaborerHandler) GetProfile(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("laborer_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpsertProfile handles PUT /api/v1/laborers/:laborer_id/profile
// Creates the laborer or replaces name and skills; availability is kept
func (h *LaborerHandler) UpsertProfile(c *gin.Context) {
	laborerID := c.Param("laborer_id")

	var req dto.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.profiles.Upsert(ctx, domain.LaborerProfile{
		ID:     laborerID,
		Name:   req.Name,
		Skills: req.Skills,
	}); err != nil {
		h.respondError(c, err)
		return
	}

	profile, err := h.profiles.Get(ctx, laborerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateAvailability handles PUT /api/v1/laborers/:laborer_id/availability
func (h *LaborerHandler) UpdateAvailability(c *gin.Context) {
	laborerID := c.Param("laborer_id")

	var req dto.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	availability := domain.Availability(req.Status)
	if err := h.profiles.SetAvailability(c.Request.Context(), laborerID, availability); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"laborerId":    laborerID,
		"availability": availability,
	})
}
