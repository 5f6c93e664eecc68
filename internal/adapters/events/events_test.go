package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/users-service/internal/app/logging"
	"github.com/viralforge/users-service/internal/application"
	"github.com/viralforge/users-service/internal/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeOutbox struct {
	mu           sync.Mutex
	records      []ports.OutboxRecord
	claimErr     error
	published    []uuid.UUID
	failed       []uuid.UUID
	deadLettered []uuid.UUID
	tokens       map[uuid.UUID]string
}

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if f.tokens == nil {
		f.tokens = map[uuid.UUID]string{}
	}
	out := f.records
	if len(out) > limit {
		out = out[:limit]
	}
	for _, rec := range out {
		f.tokens[rec.OutboxID] = claimToken
	}
	f.records = f.records[len(out):]
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens[id] != token {
		return errors.New("lease lost")
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, token, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens[id] != token {
		return errors.New("lease lost")
	}
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(_ context.Context, id uuid.UUID, token, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokens[id] != token {
		return errors.New("lease lost")
	}
	f.deadLettered = append(f.deadLettered, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	failFor  map[string]error
	messages []string
	keys     []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failFor[eventType]; err != nil {
		return err
	}
	p.messages = append(p.messages, eventType)
	p.keys = append(p.keys, partitionKey)
	return nil
}

func record(eventType string, retries int) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:     uuid.New(),
		EventType:    eventType,
		PartitionKey: "acct-" + eventType,
		Payload:      []byte(`{}`),
		RetryCount:   retries,
	}
}

func TestOutboxWorkerProcessOnce(t *testing.T) {
	ok := record("account.registered", 0)
	retry := record("broken.event", 1)
	last := record("broken.event", 4)
	stale := record("account.registered", 5)
	outbox := &fakeOutbox{records: []ports.OutboxRecord{ok, retry, last, stale}}
	publisher := &fakePublisher{failFor: map[string]error{"broken.event": errors.New("broker down")}}

	worker := NewOutboxWorker(discardLogger(), outbox, publisher, OutboxWorkerConfig{MaxRetries: 5})
	batch, err := worker.ProcessOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutboxBatch{Claimed: 4, Published: 1, Failed: 2, DeadLettered: 2}, batch)
	assert.Equal(t, []uuid.UUID{ok.OutboxID}, outbox.published)
	assert.Equal(t, []uuid.UUID{retry.OutboxID}, outbox.failed)
	assert.ElementsMatch(t, []uuid.UUID{last.OutboxID, stale.OutboxID}, outbox.deadLettered)
	assert.Equal(t, []string{"acct-account.registered"}, publisher.keys)
}

func TestOutboxWorkerRespectsBatchSize(t *testing.T) {
	outbox := &fakeOutbox{}
	for i := 0; i < 5; i++ {
		outbox.records = append(outbox.records, record("account.registered", 0))
	}
	worker := NewOutboxWorker(discardLogger(), outbox, &fakePublisher{}, OutboxWorkerConfig{BatchSize: 3})

	batch, err := worker.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Published)
	assert.Len(t, outbox.records, 2)
}

func TestOutboxWorkerClaimFailure(t *testing.T) {
	outbox := &fakeOutbox{claimErr: errors.New("db down")}
	_, err := NewOutboxWorker(discardLogger(), outbox, &fakePublisher{}, OutboxWorkerConfig{}).ProcessOnce(context.Background())
	require.Error(t, err)
}

func TestOutboxWorkerRunStopsOnCancel(t *testing.T) {
	outbox := &fakeOutbox{records: []ports.OutboxRecord{record("account.registered", 0)}}
	worker := NewOutboxWorker(discardLogger(), outbox, &fakePublisher{}, OutboxWorkerConfig{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.published) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherRoutesTopics(t *testing.T) {
	writer := &fakeWriter{}
	publisher := newKafkaPublisher(writer, nil)

	require.NoError(t, publisher.Publish(context.Background(), "account.registered", []byte(`{"a":1}`), "acct-1"))
	require.NoError(t, publisher.Publish(context.Background(), "something.else", []byte(`{}`), "acct-2"))
	require.NoError(t, publisher.Close())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, "users.account.registered.v1", writer.messages[0].Topic)
	assert.Equal(t, []byte("acct-1"), writer.messages[0].Key)
	assert.Equal(t, "account.registered", string(writer.messages[0].Headers[0].Value))
	assert.Equal(t, "something.else", writer.messages[1].Topic)
	assert.True(t, writer.closed)
}

func TestKafkaPublisherPropagatesWriteError(t *testing.T) {
	publisher := newKafkaPublisher(&fakeWriter{err: errors.New("leader not available")}, map[string]string{"x": "y"})
	require.Error(t, publisher.Publish(context.Background(), "x", nil, "k"))
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher([]string{" ", ""}, nil)
	require.Error(t, err)
}

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	reqIDs  chan string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		release: make(chan struct{}),
		started: make(chan struct{}, 8),
		reqIDs:  make(chan string, 8),
	}
}

func (r *blockingRunner) RunCompensationCycle(ctx context.Context) (application.CycleReport, error) {
	r.calls.Add(1)
	r.reqIDs <- logging.RequestID(ctx)
	r.started <- struct{}{}
	<-r.release
	return application.CycleReport{Selected: 1, Done: 1}, nil
}

func TestSchedulerCoalescesOverlappingTriggers(t *testing.T) {
	runner := newBlockingRunner()
	scheduler := NewCompensationScheduler(discardLogger(), runner, time.Minute, time.Minute)
	now := time.Now()

	assert.Equal(t, TriggerStarted, scheduler.Trigger(context.Background(), now))
	<-runner.started
	assert.Equal(t, TriggerCoalesced, scheduler.Trigger(context.Background(), now))

	close(runner.release)
	scheduler.Wait()
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.Contains(t, <-runner.reqIDs, "compensation-")

	assert.Equal(t, TriggerStarted, scheduler.Trigger(context.Background(), time.Now()))
	scheduler.Wait()
	assert.EqualValues(t, 2, runner.calls.Load())
}

func TestSchedulerMisfireGrace(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	scheduler := NewCompensationScheduler(discardLogger(), runner, 15*time.Minute, 60*time.Second)
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	scheduler.nowFn = func() time.Time { return now }

	assert.Equal(t, TriggerStarted, scheduler.Trigger(context.Background(), now.Add(-59*time.Second)))
	scheduler.Wait()
	assert.Equal(t, TriggerMisfired, scheduler.Trigger(context.Background(), now.Add(-61*time.Second)))
	scheduler.Wait()
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestSchedulerShutdownWaitsForInFlightCycle(t *testing.T) {
	runner := newBlockingRunner()
	scheduler := NewCompensationScheduler(discardLogger(), runner, 5*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()
	<-runner.started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(runner.release)
	require.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, scheduler.running.Load())
}

func TestLoggingPublisher(t *testing.T) {
	require.NoError(t, NewLoggingPublisher(discardLogger()).Publish(context.Background(), "account.registered", []byte(`{}`), "k"))
}
