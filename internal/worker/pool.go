package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop settles events until the events channel closes. In-flight events
// finish even after stop is requested so their deliveries get acknowledged.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Debug("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for msg := range w.eventsChan {
		err := w.processEvent(ctx, msg.Event)
		w.settleDelivery(workerName, msg, err)
	}

	w.logger.Debug("Worker goroutine stopping - events channel closed",
		slog.String("worker_name", workerName),
	)
}

// settleDelivery acks a processed event or nacks it with a requeue decision.
func (w *Worker) settleDelivery(workerName string, msg *eventMessage, err error) {
	if err == nil {
		if ackErr := msg.Delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("job_id", msg.Event.JobID),
				slog.String("error", ackErr.Error()),
			)
		}
		return
	}

	requeue := shouldRequeue(err)
	w.logger.Error("Event processing failed",
		slog.String("worker_name", workerName),
		slog.String("job_id", msg.Event.JobID),
		slog.Bool("requeue", requeue),
		slog.String("error", err.Error()),
	)

	if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.Event.JobID),
			slog.String("error", nackErr.Error()),
		)
	}
}
