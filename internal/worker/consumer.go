package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/labor-dispatch/internal/events"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// eventMessage is a decoded event paired with the delivery to settle.
type eventMessage struct {
	Event    events.JobEvent
	Delivery amqp.Delivery
}

// setupConsumer sets QoS and starts consuming
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	// prefetch bounds unacknowledged deliveries held by this consumer
	if err := w.source.Qos(w.prefetchCount); err != nil {
		return nil, err
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.source.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)

	return deliveries, nil
}

// decodeEvent parses a delivery body into a completion event.
func decodeEvent(body []byte) (events.JobEvent, error) {
	var event events.JobEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.Event != "" && event.Event != events.EventJobCompleted {
		return event, fmt.Errorf("%w: unexpected event %q", ErrInvalidEvent, event.Event)
	}
	if _, err := uuid.Parse(event.JobID); err != nil {
		return event, fmt.Errorf("%w: job_id %q is not a UUID", ErrInvalidEvent, event.JobID)
	}
	return event, nil
}

// startMessageDispatcher decodes deliveries and hands them to the pool
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(w.eventsChan)

	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - stopChan closed")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			event, err := decodeEvent(delivery.Body)
			if err != nil {
				w.logger.Error("Discarding malformed event",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// malformed messages are dead-lettered, never requeued
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			select {
			case w.eventsChan <- &eventMessage{Event: event, Delivery: delivery}:
				w.logger.Debug("Event dispatched to worker pool",
					slog.String("job_id", event.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching event")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
