// Package worker consumes job completion events and settles payments.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliverySource is the broker side of the worker, satisfied by the shared
// RabbitMQ client.
type DeliverySource interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// JobReader loads jobs named by events.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.JobOffer, error)
}

// Settler records the payment for a completed job.
type Settler interface {
	Settle(ctx context.Context, job *domain.JobOffer) (*domain.PaymentRecord, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Source        DeliverySource
	Jobs          JobReader
	Settler       Settler
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
	SettleTimeout time.Duration
}

// Worker represents the settlement worker
type Worker struct {
	logger        *slog.Logger
	source        DeliverySource
	jobs          JobReader
	settler       Settler
	workerID      string
	queueName     string
	concurrency   int
	prefetchCount int
	settleTimeout time.Duration
	eventsChan    chan *eventMessage
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}
	timeout := cfg.SettleTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "settlement-worker"
	}

	return &Worker{
		logger:        cfg.Logger,
		source:        cfg.Source,
		jobs:          cfg.Jobs,
		settler:       cfg.Settler,
		workerID:      workerID,
		queueName:     cfg.QueueName,
		concurrency:   concurrency,
		prefetchCount: prefetch,
		settleTimeout: timeout,
		eventsChan:    make(chan *eventMessage, concurrency),
		stopChan:      make(chan struct{}),
	}
}

// Start subscribes to the queue and processes events until ctx is canceled
// or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("settle_timeout", w.settleTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher exited",
		slog.String("worker_id", w.workerID),
	)
	return nil
}

// Stop gracefully stops the worker and waits for in-flight events
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
