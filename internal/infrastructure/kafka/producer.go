package kafka

import (
	"context"
	"time"

	"github.com/example/ec-reservation/internal/outbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes outbox rows, using each row's queue name as the topic.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

// Publish writes m synchronously; a nil error means the broker acknowledged it.
func (p *Producer) Publish(ctx context.Context, m outbox.Message) error {
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(m.EventType)},
		{Key: HeaderMessageID, Value: []byte(m.ID)},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &headers})

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   m.QueueName,
		Key:     []byte(m.ID),
		Value:   m.Payload,
		Headers: headers,
		Time:    m.CreatedAt,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
