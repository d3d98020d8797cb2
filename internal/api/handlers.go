package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/example/ec-reservation/internal/outbox"
	"go.uber.org/zap"
)

const (
	defaultDeadLetterLimit = 50
	maxDeadLetterLimit     = 500
)

// OutboxInspector is satisfied by *outbox.Dispatcher.
type OutboxInspector interface {
	Stats(ctx context.Context) (outbox.Stats, error)
	DeadLettered(ctx context.Context, limit int) ([]outbox.Message, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	outbox OutboxInspector
	db     Pinger
	logger *zap.Logger
}

// NewHandlers wires the ops endpoints. db may be nil when there is nothing to ping.
func NewHandlers(inspector OutboxInspector, db Pinger, logger *zap.Logger) *Handlers {
	return &Handlers{
		outbox: inspector,
		db:     db,
		logger: logger.Named("ops"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) OutboxStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.outbox.Stats(r.Context())
	if err != nil {
		h.logger.Error("outbox stats failed", zap.Error(err))
		respondJSONError(w, "failed to read outbox stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type deadLetterView struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	QueueName  string          `json:"queue_name"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
}

func (h *Handlers) DeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxDeadLetterLimit)
	}

	msgs, err := h.outbox.DeadLettered(r.Context(), limit)
	if err != nil {
		h.logger.Error("list dead letters failed", zap.Error(err))
		respondJSONError(w, "failed to list dead letters", http.StatusInternalServerError)
		return
	}

	views := make([]deadLetterView, 0, len(msgs))
	for _, m := range msgs {
		v := deadLetterView{
			ID:         m.ID,
			EventType:  m.EventType,
			QueueName:  m.QueueName,
			Payload:    json.RawMessage(m.Payload),
			CreatedAt:  m.CreatedAt,
			RetryCount: m.RetryCount,
		}
		if m.LastError != nil {
			v.LastError = *m.LastError
		}
		views = append(views, v)
	}
	respondJSON(w, http.StatusOK, views)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}
