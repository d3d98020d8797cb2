package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ec-reservation/internal/domain/cart"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/example/ec-reservation/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, outbox.Message) error {
	return errors.New("broker unreachable")
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newTestServer(t *testing.T, db Pinger) (http.Handler, *store.MemoryStore, *outbox.Dispatcher) {
	t.Helper()
	s := store.NewMemoryStore()
	cfg := outbox.DefaultConfig()
	cfg.MaxRetries = 1
	d := outbox.NewDispatcher(s, failingPublisher{}, cfg, zap.NewNop())
	return NewRouter(NewHandlers(d, db, zap.NewNop()), zap.NewNop()), s, d
}

func appendCartCleared(t *testing.T, s *store.MemoryStore, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := s.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			return outbox.StoreEvent(ctx, tx, cart.NewCartCleared("user-1"), outbox.QueueCart)
		})
		require.NoError(t, err)
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// ============================================
// Health Tests
// ============================================

func TestHealth(t *testing.T) {
	h, _, _ := newTestServer(t, fakePinger{})

	rec := get(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	h, _, _ := newTestServer(t, fakePinger{err: errors.New("connection refused")})

	rec := get(t, h, "/healthz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ============================================
// Outbox Tests
// ============================================

func TestOutboxStats(t *testing.T) {
	h, s, d := newTestServer(t, nil)
	appendCartCleared(t, s, 3)

	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)
	appendCartCleared(t, s, 2)

	rec := get(t, h, "/outbox/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats outbox.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, outbox.Stats{Pending: 2, Processed: 0, DeadLettered: 3}, stats)
}

func TestDeadLetters(t *testing.T) {
	h, s, d := newTestServer(t, nil)
	appendCartCleared(t, s, 3)
	_, err := d.DispatchOnce(context.Background())
	require.NoError(t, err)

	rec := get(t, h, "/outbox/dead-letters?limit=2")

	require.Equal(t, http.StatusOK, rec.Code)
	var views []deadLetterView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "CartCleared", views[0].EventType)
	assert.Equal(t, outbox.QueueCart, views[0].QueueName)
	assert.Equal(t, 1, views[0].RetryCount)
	assert.Equal(t, "broker unreachable", views[0].LastError)
	assert.Contains(t, string(views[0].Payload), `"userId":"user-1"`)
}

func TestDeadLetters_Empty(t *testing.T) {
	h, _, _ := newTestServer(t, nil)

	rec := get(t, h, "/outbox/dead-letters")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeadLetters_InvalidLimit(t *testing.T) {
	h, _, _ := newTestServer(t, nil)

	for _, limit := range []string{"0", "-4", "many"} {
		rec := get(t, h, "/outbox/dead-letters?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, limit)
	}
}
