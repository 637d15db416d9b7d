package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/labor-dispatch/internal/domain"
	"github.com/cuongbtq/labor-dispatch/internal/events"
	"github.com/cuongbtq/labor-dispatch/internal/storage/memory"
	"github.com/cuongbtq/labor-dispatch/internal/wallet"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	completedJobID = "0d9e5f0c-3c51-4b8e-9a53-6a4a8b7f1c01"
	pendingJobID   = "0d9e5f0c-3c51-4b8e-9a53-6a4a8b7f1c02"
	flakyJobID     = "0d9e5f0c-3c51-4b8e-9a53-6a4a8b7f1c03"
	unknownJobID   = "0d9e5f0c-3c51-4b8e-9a53-6a4a8b7f1c04"
)

type ackRecord struct {
	acked   bool
	nacked  bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records map[uint64]ackRecord
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{records: make(map[uint64]ackRecord)}
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[tag] = ackRecord{acked: true}
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[tag] = ackRecord{nacked: true, requeue: requeue}
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) record(tag uint64) ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records[tag]
}

type fakeSource struct {
	deliveries chan amqp.Delivery
	prefetch   int
	qosErr     error
}

func (s *fakeSource) Qos(prefetchCount int) error {
	s.prefetch = prefetchCount
	return s.qosErr
}

func (s *fakeSource) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return s.deliveries, nil
}

type flakyJobs struct {
	*memory.JobStore
	failID string
}

func (f flakyJobs) Get(ctx context.Context, jobID string) (*domain.JobOffer, error) {
	if jobID == f.failID {
		return nil, errors.New("connection refused")
	}
	return f.JobStore.Get(ctx, jobID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type workerEnv struct {
	worker   *Worker
	source   *fakeSource
	payments *memory.PaymentStore
	acks     *fakeAcknowledger
}

func newWorkerEnv(t *testing.T) *workerEnv {
	t.Helper()
	ctx := context.Background()

	jobs := memory.NewJobStore()
	laborer := "A"
	require.NoError(t, jobs.Create(ctx, &domain.JobOffer{
		ID:                completedJobID,
		CustomerID:        "cust-1",
		TotalAmount:       90000,
		Status:            domain.JobStatusCompleted,
		AssignedLaborerID: &laborer,
	}))
	require.NoError(t, jobs.Create(ctx, &domain.JobOffer{
		ID:     pendingJobID,
		Status: domain.JobStatusPending,
	}))

	env := &workerEnv{
		source:   &fakeSource{deliveries: make(chan amqp.Delivery, 8)},
		payments: memory.NewPaymentStore(),
		acks:     newFakeAcknowledger(),
	}
	env.worker = NewWorker(&Config{
		Logger: discardLogger(),
		Source: env.source,
		Jobs:   flakyJobs{JobStore: jobs, failID: flakyJobID},
		Settler: wallet.NewLedger(&wallet.Config{
			Store:              env.payments,
			Logger:             discardLogger(),
			PlatformFeePercent: 10,
		}),
		Concurrency: 3,
	})
	return env
}

func (e *workerEnv) deliver(tag uint64, body string) {
	e.source.deliveries <- amqp.Delivery{
		Acknowledger: e.acks,
		DeliveryTag:  tag,
		Body:         []byte(body),
	}
}

func eventBody(jobID string) string {
	return fmt.Sprintf(`{"event":"job.completed","job_id":%q,"laborer_id":"A","occurred_at":"2025-03-01T17:00:00Z"}`, jobID)
}

func TestWorker_SettlesAndAcknowledges(t *testing.T) {
	env := newWorkerEnv(t)

	env.deliver(1, eventBody(completedJobID))
	env.deliver(2, eventBody(completedJobID))
	env.deliver(3, eventBody(pendingJobID))
	env.deliver(4, eventBody(unknownJobID))
	env.deliver(5, eventBody(flakyJobID))
	env.deliver(6, `{not json`)
	env.deliver(7, `{"event":"job.completed","job_id":"42"}`)
	close(env.source.deliveries)

	done := make(chan error, 1)
	go func() { done <- env.worker.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after delivery channel closed")
	}
	env.worker.Stop()

	assert.Equal(t, 3, env.source.prefetch)

	tests := []struct {
		tag  uint64
		want ackRecord
	}{
		{tag: 1, want: ackRecord{acked: true}},
		{tag: 2, want: ackRecord{acked: true}},
		{tag: 3, want: ackRecord{nacked: true}},
		{tag: 4, want: ackRecord{nacked: true}},
		{tag: 5, want: ackRecord{nacked: true, requeue: true}},
		{tag: 6, want: ackRecord{nacked: true}},
		{tag: 7, want: ackRecord{nacked: true}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, env.acks.record(tt.tag), "delivery %d", tt.tag)
	}

	payments, err := env.payments.ListByLaborer(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, completedJobID, payments[0].JobID)
	assert.Equal(t, int64(81000), payments[0].NetAmount)
}

func TestWorker_StartFailsWhenQosFails(t *testing.T) {
	env := newWorkerEnv(t)
	env.source.qosErr = errors.New("channel closed")

	err := env.worker.Start(context.Background())
	assert.Error(t, err)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	env := newWorkerEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.worker.Start(ctx) }()

	env.deliver(1, eventBody(completedJobID))
	require.Eventually(t, func() bool { return env.acks.record(1).acked }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	env.worker.Stop()
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "transient", err: NewRetryableError(errors.New("timeout")), want: true},
		{name: "invalid event", err: fmt.Errorf("%w: bad json", ErrInvalidEvent), want: false},
		{name: "not completed", err: ErrJobNotCompleted, want: false},
		{name: "job missing", err: domain.ErrJobNotFound, want: false},
		{name: "not settleable", err: wallet.ErrNotSettleable, want: false},
		{name: "unknown", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent([]byte(eventBody(completedJobID)))
	require.NoError(t, err)
	assert.Equal(t, completedJobID, event.JobID)
	assert.Equal(t, events.EventJobCompleted, event.Event)

	_, err = decodeEvent([]byte(`{"event":"job.cancelled","job_id":"` + completedJobID + `"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}
