// Package events carries job lifecycle events from the API to settlement.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
)

// EventJobCompleted is also the routing key of completion messages.
const EventJobCompleted = "job.completed"

// JobEvent is the message body published for a job lifecycle event.
type JobEvent struct {
	Event      string    `json:"event"`
	JobID      string    `json:"job_id"`
	LaborerID  string    `json:"laborer_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewJobCompleted builds the completion event for job.
func NewJobCompleted(job *domain.JobOffer, at time.Time) JobEvent {
	return JobEvent{
		Event:      EventJobCompleted,
		JobID:      job.ID,
		LaborerID:  job.Assignee(),
		OccurredAt: at.UTC(),
	}
}

// JSONPublisher is satisfied by the shared RabbitMQ client.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

// AMQPPublisher publishes completion events to the broker.
type AMQPPublisher struct {
	client     JSONPublisher
	routingKey string
	now        func() time.Time
}

// NewAMQPPublisher creates a new AMQPPublisher. An empty routing key
// publishes under the event name.
func NewAMQPPublisher(client JSONPublisher, routingKey string) *AMQPPublisher {
	if routingKey == "" {
		routingKey = EventJobCompleted
	}
	return &AMQPPublisher{client: client, routingKey: routingKey, now: time.Now}
}

// PublishJobCompleted publishes a job.completed event.
func (p *AMQPPublisher) PublishJobCompleted(ctx context.Context, job *domain.JobOffer) error {
	event := NewJobCompleted(job, p.now())
	if err := p.client.PublishJSON(ctx, p.routingKey, event); err != nil {
		return fmt.Errorf("failed to publish %s for job %s: %w", EventJobCompleted, job.ID, err)
	}
	return nil
}

// Settler records the payment for a completed job.
type Settler interface {
	Settle(ctx context.Context, job *domain.JobOffer) (*domain.PaymentRecord, error)
}

// DirectSettler settles in-process instead of going through the broker.
type DirectSettler struct {
	settler Settler
	logger  *slog.Logger
}

// NewDirectSettler creates a new DirectSettler
func NewDirectSettler(settler Settler, logger *slog.Logger) *DirectSettler {
	return &DirectSettler{settler: settler, logger: logger}
}

// PublishJobCompleted settles job immediately.
func (s *DirectSettler) PublishJobCompleted(ctx context.Context, job *domain.JobOffer) error {
	payment, err := s.settler.Settle(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to settle job %s: %w", job.ID, err)
	}
	s.logger.Debug("Job settled in-process",
		slog.String("job_id", job.ID),
		slog.String("payment_id", payment.ID),
	)
	return nil
}
