package dto

type UpdateAvailabilityRequest struct {
	Status string `json:"status" binding:"required,oneof=available busy unavailable"`
}

type UpsertProfileRequest struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills" binding:"required,min=1,dive,required"`
}
