package realtime

import "github.com/cuongbtq/labor-dispatch/internal/domain"

// Message types exchanged over the push channel.
const (
	TypeRegister   = "register"
	TypeRegistered = "registered"
	TypeNewJob     = "new_job"
	TypeJobTaken   = "job_taken"
	TypeError      = "error"
	TypePing       = "ping"
	TypePong       = "pong"
)

// Message is the JSON frame carried by a Channel.
type Message struct {
	Type   string           `json:"type"`
	UserID string           `json:"userId,omitempty"`
	Job    *domain.JobOffer `json:"job,omitempty"`
	JobID  string           `json:"jobId,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// NewJobMessage builds an offer frame.
func NewJobMessage(job *domain.JobOffer) Message {
	return Message{Type: TypeNewJob, Job: job}
}

// JobTakenMessage builds a retraction frame.
func JobTakenMessage(jobID string) Message {
	return Message{Type: TypeJobTaken, JobID: jobID}
}
