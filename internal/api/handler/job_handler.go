package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/labor-dispatch/internal/api/dto"
	"github.com/cuongbtq/labor-dispatch/internal/dispatch"
	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler handles job posting and lifecycle requests
type JobHandler struct {
	base
	jobs    *dispatch.Service
	arbiter *dispatch.Arbiter
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		base:    newBase(deps),
		jobs:    deps.Jobs,
		arbiter: deps.Arbiter,
	}
}

// CreateJob handles POST /api/v1/jobs
// Persists a pending job and offers it to matching laborers
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, err.Error())
		return
	}

	result, err := h.jobs.Post(c.Request.Context(), dispatch.NewJob{
		CustomerID:   req.CustomerID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		SkillsNeeded: req.Skills(),
		TotalAmount:  req.TotalAmount,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.CreateJobResponse{
		Job:        result.Job,
		Candidates: result.Candidates,
		Deliveries: make([]dto.DeliveryDTO, len(result.Deliveries)),
	}
	if resp.Candidates == nil {
		resp.Candidates = []string{}
	}
	for i, d := range result.Deliveries {
		resp.Deliveries[i] = dto.DeliveryDTO{
			LaborerID: d.LaborerID,
			Delivered: d.Outcome.Delivered,
			Reason:    string(d.Outcome.Reason),
		}
	}
	if result.DispatchErr != nil {
		resp.DispatchError = result.DispatchErr.Error()
	}

	c.JSON(http.StatusCreated, resp)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	status := domain.JobStatus(req.Status)
	if status != "" && !status.Valid() {
		badRequest(c, "unknown job status")
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.String("error", err.Error()))
		badRequest(c, "invalid cursor")
		return
	}

	page, err := h.jobs.List(c.Request.Context(), domain.JobFilter{
		CustomerID:        req.CustomerID,
		AssignedLaborerID: req.LaborerID,
		Status:            status,
		Skill:             req.Skill,
		PageSize:          req.PageSize,
		Cursor:            cursor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.ListJobsResponse{Jobs: page.Jobs}
	if page.Next != nil {
		resp.NextCursor = EncodeJobCursor(page.Next)
	}
	c.JSON(http.StatusOK, resp)
}

// AcceptJob handles POST /api/v1/jobs/:job_id/accept
// Exactly one concurrent accept wins; the rest get 400 AlreadyAssigned
func (h *JobHandler) AcceptJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.AcceptJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	job, err := h.arbiter.Accept(c.Request.Context(), jobID, req.LaborerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// StartJob handles POST /api/v1/jobs/:job_id/start
func (h *JobHandler) StartJob(c *gin.Context) {
	h.laborerAction(c, h.arbiter.Start)
}

// SubmitJob handles POST /api/v1/jobs/:job_id/submit
func (h *JobHandler) SubmitJob(c *gin.Context) {
	h.laborerAction(c, h.arbiter.SubmitForReview)
}

// CompleteJob handles POST /api/v1/jobs/:job_id/complete
// The customer's sign-off; settlement follows asynchronously
func (h *JobHandler) CompleteJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.CompleteJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	job, err := h.arbiter.Complete(c.Request.Context(), jobID, req.CustomerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.arbiter.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

type laborerTransition func(ctx context.Context, jobID, laborerID string) (*domain.JobOffer, error)

func (h *JobHandler) laborerAction(c *gin.Context, act laborerTransition) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	var req dto.LaborerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	job, err := act(c.Request.Context(), jobID, req.LaborerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func jobIDParam(c *gin.Context) (string, bool) {
	return uuidParam(c, "job_id")
}

// uuidParam reads a path parameter that must be a UUID.
func uuidParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if _, err := uuid.Parse(value); err != nil {
		badRequest(c, name+" must be a valid UUID")
		return "", false
	}
	return value, true
}
