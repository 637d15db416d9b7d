package dto

import "github.com/cuongbtq/labor-dispatch/internal/domain"

type SkillNeedDTO struct {
	Skill    string `json:"skill" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Rate     int64  `json:"rate" binding:"gte=0"`
}

type CreateJobRequest struct {
	CustomerID   string         `json:"customerId" binding:"required"`
	Title        string         `json:"title" binding:"required"`
	Description  string         `json:"description"`
	Location     string         `json:"location"`
	SkillsNeeded []SkillNeedDTO `json:"skillsNeeded" binding:"required,min=1,dive"`
	TotalAmount  int64          `json:"totalAmount" binding:"gte=0"`
}

// Skills converts the requested skill lines.
func (r *CreateJobRequest) Skills() []domain.SkillNeed {
	skills := make([]domain.SkillNeed, len(r.SkillsNeeded))
	for i, s := range r.SkillsNeeded {
		skills[i] = domain.SkillNeed{Skill: s.Skill, Quantity: s.Quantity, Rate: s.Rate}
	}
	return skills
}

type DeliveryDTO struct {
	LaborerID string `json:"laborerId"`
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
}

type CreateJobResponse struct {
	Job           *domain.JobOffer `json:"job"`
	Candidates    []string         `json:"candidates"`
	Deliveries    []DeliveryDTO    `json:"deliveries"`
	DispatchError string           `json:"dispatchError,omitempty"`
}

type ListJobsRequest struct {
	CustomerID string `form:"customer_id"`
	LaborerID  string `form:"laborer_id"`
	Status     string `form:"status"`
	Skill      string `form:"skill"`
	PageSize   int    `form:"page_size" binding:"gte=0"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []domain.JobOffer `json:"jobs"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

type AcceptJobRequest struct {
	LaborerID string `json:"laborerId" binding:"required"`
}

// LaborerActionRequest is the body of start and submit.
type LaborerActionRequest struct {
	LaborerID string `json:"laborerId" binding:"required"`
}

type CompleteJobRequest struct {
	CustomerID string `json:"customerId"`
}
