package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows []Message
}

func (r *fakeRepo) add(id, queue string, createdAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, Message{ID: id, EventType: "CartCleared", Payload: []byte(`{}`), QueueName: queue, CreatedAt: createdAt})
}

func (r *fakeRepo) get(id string) Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID == id {
			return m
		}
	}
	return Message{}
}

func (r *fakeRepo) Pending(_ context.Context, limit, maxRetries int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.rows {
		if m.Pending() && m.RetryCount < maxRetries {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) MarkProcessed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].ProcessedAt = &at
		}
	}
	return nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id, lastError string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].RetryCount++
			r.rows[i].LastError = &lastError
			return r.rows[i].RetryCount, nil
		}
	}
	return 0, errors.New("not found")
}

func (r *fakeRepo) PruneProcessed(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []Message
	var n int64
	for _, m := range r.rows {
		if m.ProcessedAt != nil && m.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.rows = kept
	return n, nil
}

func (r *fakeRepo) Stats(_ context.Context, maxRetries int) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s Stats
	for _, m := range r.rows {
		switch {
		case !m.Pending():
			s.Processed++
		case m.RetryCount >= maxRetries:
			s.DeadLettered++
		default:
			s.Pending++
		}
	}
	return s, nil
}

func (r *fakeRepo) DeadLettered(_ context.Context, maxRetries, limit int) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.rows {
		if m.DeadLettered(maxRetries) && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	failQueue string
}

func (p *fakePublisher) Publish(_ context.Context, m Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.QueueName == p.failQueue {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, m.ID)
	return nil
}

func newTestDispatcher(repo Repository, pub Publisher, cfg Config) (*Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(repo, pub, cfg, zap.New(core)), logs
}

// ============================================
// DispatchOnce Tests
// ============================================

func TestDispatchOnce_PublishesOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	base := time.Now().UTC()
	repo.add("m3", QueueCart, base.Add(3*time.Second))
	repo.add("m1", QueueCart, base.Add(1*time.Second))
	repo.add("m2", QueueOrder, base.Add(2*time.Second))
	pub := &fakePublisher{}
	d, _ := newTestDispatcher(repo, pub, Config{BatchSize: 10, MaxRetries: 3})

	res, err := d.DispatchOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Published)
	assert.Equal(t, []string{"m1", "m2", "m3"}, pub.published)
	assert.NotNil(t, repo.get("m1").ProcessedAt)
}

func TestDispatchOnce_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		repo.add(id, QueueCart, base.Add(time.Duration(i)*time.Second))
	}
	pub := &fakePublisher{}
	d, _ := newTestDispatcher(repo, pub, Config{BatchSize: 2, MaxRetries: 3})

	res, err := d.DispatchOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Published)
	assert.True(t, repo.get("c").Pending())
}

func TestDispatchOnce_FailureIncrementsRetry(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	repo.add("bad", QueueOrder, time.Now().UTC())
	repo.add("good", QueueCart, time.Now().UTC().Add(time.Second))
	pub := &fakePublisher{failQueue: QueueOrder}
	d, logs := newTestDispatcher(repo, pub, Config{BatchSize: 10, MaxRetries: 3})

	res, err := d.DispatchOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Failed)
	bad := repo.get("bad")
	assert.True(t, bad.Pending())
	assert.Equal(t, 1, bad.RetryCount)
	require.NotNil(t, bad.LastError)
	assert.Equal(t, "broker unavailable", *bad.LastError)
	assert.Equal(t, 1, logs.FilterMessage("publish failed, will retry").Len())
}

func TestDispatchOnce_DeadLettersAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	repo.add("bad", QueueOrder, time.Now().UTC())
	pub := &fakePublisher{failQueue: QueueOrder}
	d, logs := newTestDispatcher(repo, pub, Config{BatchSize: 10, MaxRetries: 2})

	_, _ = d.DispatchOnce(ctx)
	res, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeadLettered)

	// parked rows are no longer selected
	res, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	dead := logs.FilterMessage("outbox message dead-lettered").All()
	require.Len(t, dead, 1)
	assert.Equal(t, zapcore.ErrorLevel, dead[0].Level)

	stats, err := d.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{DeadLettered: 1}, stats)

	parked, err := d.DeadLettered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "bad", parked[0].ID)
}

// ============================================
// Prune / Run Tests
// ============================================

func TestPrune_DisabledByDefault(t *testing.T) {
	repo := &fakeRepo{}
	d, _ := newTestDispatcher(repo, &fakePublisher{}, Config{})

	n, err := d.Prune(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPrune_RemovesOldProcessedRows(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	repo.add("old", QueueCart, time.Now().UTC())
	repo.add("pending", QueueCart, time.Now().UTC())
	_ = repo.MarkProcessed(ctx, "old", time.Now().UTC().Add(-2*time.Hour))
	d, _ := newTestDispatcher(repo, &fakePublisher{}, Config{Retention: time.Hour})

	n, err := d.Prune(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "pending", repo.get("pending").ID)
	assert.Empty(t, repo.get("old").ID)
}

func TestRun_WakeTriggersDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	d, _ := newTestDispatcher(repo, pub, Config{BatchSize: 10, MaxRetries: 3, PollInterval: time.Hour})
	wake := make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, wake) }()

	repo.add("late", QueueCart, time.Now().UTC())
	wake <- struct{}{}

	assert.Eventually(t, func() bool { return !repo.get("late").Pending() }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
