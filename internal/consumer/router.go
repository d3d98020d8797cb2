package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-reservation/internal/event"
	"github.com/example/ec-reservation/internal/infrastructure/kafka"
	"go.uber.org/zap"
)

const releaseTimeout = 2 * time.Second

// Handler processes one decoded event. Returning an error asks for redelivery.
type Handler func(ctx context.Context, evt event.Event) error

// Deduplicator guards against handling the same event twice in one consumer group.
type Deduplicator interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Router dispatches events to a handler table fixed at construction.
type Router struct {
	handlers map[event.Kind]Handler
	dedup    Deduplicator
	logger   *zap.Logger
}

// NewRouter fails when a handler is registered for a kind that cannot be decoded.
// dedup may be nil.
func NewRouter(handlers map[event.Kind]Handler, dedup Deduplicator, logger *zap.Logger) (*Router, error) {
	table := make(map[event.Kind]Handler, len(handlers))
	for kind, h := range handlers {
		if _, ok := decoders[kind]; !ok {
			return nil, fmt.Errorf("%w: no decoder for %q", ErrUnknownEventType, kind)
		}
		if h == nil {
			return nil, fmt.Errorf("nil handler for %q", kind)
		}
		table[kind] = h
	}
	return &Router{handlers: table, dedup: dedup, logger: logger.Named("consumer")}, nil
}

// HandleMessage adapts Route to the Kafka consumer loop.
func (r *Router) HandleMessage(ctx context.Context, d kafka.Delivery) error {
	return r.Route(ctx, d.Value)
}

// Route decodes payload and runs its handler. Unknown and malformed events are
// acknowledged with a log entry rather than retried.
func (r *Router) Route(ctx context.Context, payload []byte) error {
	evt, err := Decode(payload)
	if errors.Is(err, ErrUnknownEventType) {
		r.logger.Warn("unknown event type, acknowledging", zap.Error(err))
		return nil
	}
	if err != nil {
		r.logger.Error("malformed event, acknowledging", zap.Error(err), zap.ByteString("payload", payload))
		return nil
	}

	meta := evt.Meta()
	h, ok := r.handlers[meta.EventType]
	if !ok {
		r.logger.Debug("no handler registered", zap.String("event_type", string(meta.EventType)))
		return nil
	}

	if r.dedup != nil {
		claimed, err := r.dedup.Claim(ctx, meta.EventID)
		if err != nil {
			return err
		}
		if !claimed {
			r.logger.Debug("duplicate delivery skipped",
				zap.String("event_id", meta.EventID),
				zap.String("event_type", string(meta.EventType)))
			return nil
		}
	}

	if err := h(ctx, evt); err != nil {
		if r.dedup != nil {
			r.release(ctx, meta.EventID)
		}
		return fmt.Errorf("handle %s %s: %w", meta.EventType, meta.EventID, err)
	}
	return nil
}

// release runs even when ctx is already cancelled.
func (r *Router) release(ctx context.Context, eventID string) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.dedup.Release(relCtx, eventID); err != nil {
		r.logger.Warn("release dedup claim failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
