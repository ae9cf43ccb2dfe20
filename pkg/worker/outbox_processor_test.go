package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

type statusUpdate struct {
	id      uuid.UUID
	status  model.OutboxStatus
	errMsg  *string
	retryAt *time.Time
}

type fakeOutboxRepo struct {
	mu      sync.Mutex
	pending []*model.OutboxEvent
	updates []statusUpdate
	txs     int
}

func (r *fakeOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, event)
	return nil
}

func (r *fakeOutboxRepo) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.mu.Lock()
	r.txs++
	r.mu.Unlock()
	return fn(nil)
}

func (r *fakeOutboxRepo) GetPendingEventsWithLock(_ context.Context, _ *sqlx.Tx, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) > limit {
		return r.pending[:limit], nil
	}
	return r.pending, nil
}

func (r *fakeOutboxRepo) UpdateStatusTx(_ context.Context, _ *sqlx.Tx, id uuid.UUID, status model.OutboxStatus, errMsg *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, statusUpdate{id: id, status: status, errMsg: errMsg, retryAt: retryAt})
	return nil
}

func (r *fakeOutboxRepo) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	err       error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][][]byte)}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBroker) Ping(context.Context) error { return b.err }

func (b *fakeBroker) Close() error { return nil }

var _ messaging.Broker = (*fakeBroker)(nil)

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Channel:       "care.events",
	}
}

func newEvent(t *testing.T, eventType string, retries int) *model.OutboxEvent {
	t.Helper()
	evt, err := model.NewOutboxEvent(eventType, map[string]string{"k": "v"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	evt.RetryCount = retries
	return evt
}

func newProcessor(t *testing.T, repo *fakeOutboxRepo, broker *fakeBroker) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(repo, broker, testConfig(), logger.Nop(), metrics.NewTestMetrics())
	require.NoError(t, err)
	return p
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 0
	_, err := NewOutboxProcessor(&fakeOutboxRepo{}, newFakeBroker(), cfg, logger.Nop(), metrics.NewTestMetrics())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Channel = ""
	_, err = NewOutboxProcessor(&fakeOutboxRepo{}, newFakeBroker(), cfg, logger.Nop(), metrics.NewTestMetrics())
	assert.Error(t, err)
}

func TestProcessEventsPublishesEnvelope(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	evt := newEvent(t, model.EventScheduleCreated, 0)
	require.NoError(t, repo.Create(context.Background(), evt))

	n, err := newProcessor(t, repo, broker).processEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, repo.txs)

	msgs := broker.published["care.events"]
	require.Len(t, msgs, 1)
	var env messaging.Envelope
	require.NoError(t, json.Unmarshal(msgs[0], &env))
	assert.Equal(t, evt.ID, env.ID)
	assert.Equal(t, model.EventScheduleCreated, env.Type)
	assert.JSONEq(t, `{"k":"v"}`, string(env.Payload))

	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusProcessed, repo.updates[0].status)
}

func TestProcessEventsSchedulesRetry(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	broker.err = errors.New("connection refused")
	require.NoError(t, repo.Create(context.Background(), newEvent(t, model.EventConnectionAccepted, 1)))

	p := newProcessor(t, repo, broker)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.processEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, repo.updates, 1)
	u := repo.updates[0]
	assert.Equal(t, model.OutboxStatusRetry, u.status)
	require.NotNil(t, u.errMsg)
	assert.Contains(t, *u.errMsg, "connection refused")
	require.NotNil(t, u.retryAt)
	assert.Equal(t, now.Add(2*time.Second), *u.retryAt)
}

func TestProcessEventsGivesUp(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	broker.err = errors.New("connection refused")
	require.NoError(t, repo.Create(context.Background(), newEvent(t, model.EventConnectionAccepted, 2)))

	_, err := newProcessor(t, repo, broker).processEvents(context.Background())
	require.NoError(t, err)

	require.Len(t, repo.updates, 1)
	assert.Equal(t, model.OutboxStatusFailed, repo.updates[0].status)
	assert.Nil(t, repo.updates[0].retryAt)
}

func TestProcessEventsRespectsBatchSize(t *testing.T) {
	repo := &fakeOutboxRepo{}
	broker := newFakeBroker()
	for i := 0; i < 15; i++ {
		require.NoError(t, repo.Create(context.Background(), newEvent(t, model.EventScheduleUpdated, 0)))
	}

	n, err := newProcessor(t, repo, broker).processEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Len(t, broker.published["care.events"], 10)
}

func TestNextAttemptCapsBackoff(t *testing.T) {
	p := newProcessor(t, &fakeOutboxRepo{}, newFakeBroker())
	p.config.RetryAttempts = 100
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	status, at := p.nextAttempt(&model.OutboxEvent{RetryCount: 40})
	assert.Equal(t, model.OutboxStatusRetry, status)
	require.NotNil(t, at)
	assert.Equal(t, now.Add(maxBackoff), *at)
}

func TestStartStopsOnCancel(t *testing.T) {
	repo := &fakeOutboxRepo{}
	p := newProcessor(t, repo, newFakeBroker())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Greater(t, repo.txs, 0)
}
