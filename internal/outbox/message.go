package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/ec-reservation/internal/event"
	"github.com/google/uuid"
)

// Message is one outbox row. ProcessedAt == nil means pending.
type Message struct {
	ID          string     `json:"id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	QueueName   string     `json:"queue_name"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error,omitempty"`
}

func (m Message) Pending() bool { return m.ProcessedAt == nil }

// DeadLettered reports whether the dispatcher has given up on the row.
func (m Message) DeadLettered(maxRetries int) bool {
	return m.Pending() && m.RetryCount >= maxRetries
}

// NewMessage serializes evt for delivery to queue.
func NewMessage(evt event.Event, queue string) (Message, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s: %w", evt.Meta().EventType, err)
	}
	return Message{
		ID:        uuid.New().String(),
		EventType: string(evt.Meta().EventType),
		Payload:   payload,
		QueueName: queue,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Appender is satisfied by a unit-of-work transaction.
type Appender interface {
	AppendOutbox(ctx context.Context, m Message) error
}

// StoreEvent appends evt to the outbox through the caller's transaction.
// There is no send step here; the row becomes visible only when that transaction commits.
func StoreEvent(ctx context.Context, tx Appender, evt event.Event, queue string) error {
	m, err := NewMessage(evt, queue)
	if err != nil {
		return err
	}
	if err := tx.AppendOutbox(ctx, m); err != nil {
		return fmt.Errorf("append outbox %s: %w", m.EventType, err)
	}
	return nil
}
