package domain

import "time"

// JobStatus is the lifecycle state of a posted job.
type JobStatus string

// Job status constants
const (
	JobStatusPending        JobStatus = "pending"
	JobStatusAssigned       JobStatus = "assigned"
	JobStatusInProgress     JobStatus = "in_progress"
	JobStatusReadyForReview JobStatus = "ready_for_review"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusCancelled      JobStatus = "cancelled"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusAssigned, JobStatusInProgress,
		JobStatusReadyForReview, JobStatusCompleted, JobStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// RequiresAssignee reports whether a job in this status must carry an
// assigned laborer.
func (s JobStatus) RequiresAssignee() bool {
	switch s {
	case JobStatusAssigned, JobStatusInProgress, JobStatusReadyForReview, JobStatusCompleted:
		return true
	}
	return false
}

// SkillNeed is one line of a job's requirements.
type SkillNeed struct {
	Skill    string `json:"skill"`
	Quantity int    `json:"quantity"`
	Rate     int64  `json:"rate"`
}

// JobOffer is a unit of work posted by a customer.
// Amounts are in minor currency units.
type JobOffer struct {
	ID                string      `json:"id" db:"id"`
	CustomerID        string      `json:"customerId" db:"customer_id"`
	Title             string      `json:"title" db:"title"`
	Description       string      `json:"description,omitempty" db:"description"`
	SkillsNeeded      []SkillNeed `json:"skillsNeeded" db:"-"`
	Location          string      `json:"location" db:"location"`
	TotalAmount       int64       `json:"totalAmount" db:"total_amount"`
	Status            JobStatus   `json:"status" db:"status"`
	AssignedLaborerID *string     `json:"assignedLaborerId,omitempty" db:"assigned_laborer_id"`
	CreatedAt         time.Time   `json:"createdAt" db:"created_at"`
	AssignedAt        *time.Time  `json:"assignedAt,omitempty" db:"assigned_at"`
	StartedAt         *time.Time  `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt       *time.Time  `json:"completedAt,omitempty" db:"completed_at"`
	UpdatedAt         time.Time   `json:"updatedAt" db:"updated_at"`
}

// RequiredSkills returns the distinct skills in the order they first appear.
func (j *JobOffer) RequiredSkills() []string {
	seen := make(map[string]struct{}, len(j.SkillsNeeded))
	skills := make([]string, 0, len(j.SkillsNeeded))
	for _, need := range j.SkillsNeeded {
		if need.Skill == "" {
			continue
		}
		if _, ok := seen[need.Skill]; ok {
			continue
		}
		seen[need.Skill] = struct{}{}
		skills = append(skills, need.Skill)
	}
	return skills
}

// IsAssignedTo reports whether laborerID holds the job.
func (j *JobOffer) IsAssignedTo(laborerID string) bool {
	return j.AssignedLaborerID != nil && *j.AssignedLaborerID == laborerID
}

// Assignee returns the assigned laborer or an empty string.
func (j *JobOffer) Assignee() string {
	if j.AssignedLaborerID == nil {
		return ""
	}
	return *j.AssignedLaborerID
}

// TransitionFields carries the columns stamped alongside a status change.
// Nil fields are left untouched. ClearAssignee removes the assignee.
type TransitionFields struct {
	AssignedLaborerID *string
	AssignedAt        *time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ClearAssignee     bool
	UpdatedAt         time.Time
}

// JobFilter selects jobs for listing. Empty fields do not filter.
type JobFilter struct {
	CustomerID        string
	AssignedLaborerID string
	Status            JobStatus
	Skill             string
	PageSize          int
	Cursor            *JobCursor
}

// JobCursor is the position after the last job of a page, in
// (created_at DESC, id DESC) order.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// After reports whether job sorts after the cursor.
func (c *JobCursor) After(job *JobOffer) bool {
	if job.CreatedAt.Equal(c.CreatedAt) {
		return job.ID < c.JobID
	}
	return job.CreatedAt.Before(c.CreatedAt)
}

// NeedsSkill reports whether any line of the job asks for skill.
func (j *JobOffer) NeedsSkill(skill string) bool {
	for _, need := range j.SkillsNeeded {
		if need.Skill == skill {
			return true
		}
	}
	return false
}
