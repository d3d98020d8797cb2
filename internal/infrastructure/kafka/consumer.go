package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Delivery is one consumed record.
type Delivery struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

func (d Delivery) EventType() string { return Header(d.Headers, HeaderEventType) }

// MessageHandler is retried up to handleAttempts times before the record is skipped.
type MessageHandler func(ctx context.Context, d Delivery) error

const (
	handleAttempts = 3
	retryBackoff   = 500 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  messageReader
	backoff time.Duration
	logger  *zap.Logger
}

func NewConsumer(brokers, topics []string, groupID string, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     time.Second,
	})
	return &Consumer{reader: reader, backoff: retryBackoff, logger: logger.Named("kafka-consumer")}
}

// Consume fetches and handles records until ctx is done.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			c.logger.Warn("fetch message failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		}

		msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})
		d := Delivery{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Headers: msg.Headers}
		if err := c.handle(msgCtx, handler, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("handle message failed, skipping",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.String("event_type", d.EventType()),
				zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warn("commit offset failed", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler MessageHandler, d Delivery) error {
	var err error
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		if err = handler(ctx, d); err == nil {
			return nil
		}
		if attempt == handleAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
