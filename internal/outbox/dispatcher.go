package outbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Repository is the dispatcher's view of the outbox table.
type Repository interface {
	// Pending returns up to limit rows with processedAt null and retryCount < maxRetries, oldest first.
	Pending(ctx context.Context, limit, maxRetries int) ([]Message, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
	// MarkFailed increments retryCount, records lastError and returns the new retry count.
	MarkFailed(ctx context.Context, id, lastError string) (int, error)
	PruneProcessed(ctx context.Context, before time.Time) (int64, error)
	Stats(ctx context.Context, maxRetries int) (Stats, error)
	DeadLettered(ctx context.Context, maxRetries, limit int) ([]Message, error)
}

type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

type Stats struct {
	Pending      int64 `json:"pending"`
	Processed    int64 `json:"processed"`
	DeadLettered int64 `json:"dead_lettered"`
}

type Config struct {
	BatchSize    int
	MaxRetries   int
	PollInterval time.Duration
	// Retention <= 0 keeps processed rows forever.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		MaxRetries:   5,
		PollInterval: 5 * time.Second,
	}
}

// Result summarizes one batch.
type Result struct {
	Published    int
	Failed       int
	DeadLettered int
}

type Dispatcher struct {
	repo   Repository
	pub    Publisher
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewDispatcher(repo Repository, pub Publisher, cfg Config, logger *zap.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &Dispatcher{
		repo:   repo,
		pub:    pub,
		cfg:    cfg,
		logger: logger.Named("dispatcher"),
		tracer: otel.Tracer("github.com/example/ec-reservation/internal/outbox"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Config() Config { return d.cfg }

// Run polls until ctx is done. A receive on wake triggers an immediate batch.
func (d *Dispatcher) Run(ctx context.Context, wake <-chan struct{}) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("started",
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Int("max_retries", d.cfg.MaxRetries),
		zap.Duration("poll_interval", d.cfg.PollInterval))

	d.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			d.drain(ctx)
			d.prune(ctx)
		case <-wake:
			d.drain(ctx)
		}
	}
}

// drain keeps dispatching while batches come back full.
func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := d.DispatchOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Error("dispatch batch failed", zap.Error(err))
			}
			return
		}
		if res.Published+res.Failed < d.cfg.BatchSize || res.Failed > 0 {
			return
		}
	}
}

func (d *Dispatcher) prune(ctx context.Context) {
	if d.cfg.Retention <= 0 {
		return
	}
	n, err := d.Prune(ctx)
	if err != nil {
		d.logger.Warn("prune processed messages failed", zap.Error(err))
		return
	}
	if n > 0 {
		d.logger.Info("pruned processed messages", zap.Int64("count", n))
	}
}

// DispatchOnce publishes one batch of pending rows in createdAt order.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Result, error) {
	var res Result
	msgs, err := d.repo.Pending(ctx, d.cfg.BatchSize, d.cfg.MaxRetries)
	if err != nil {
		return res, err
	}

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.dispatch(ctx, m, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, m Message, res *Result) error {
	ctx, span := d.tracer.Start(ctx, "outbox.dispatch",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("outbox.id", m.ID),
			attribute.String("outbox.event_type", m.EventType),
			attribute.String("messaging.destination.name", m.QueueName),
			attribute.Int("outbox.retry_count", m.RetryCount),
		))
	defer span.End()

	pubErr := d.pub.Publish(ctx, m)
	if pubErr == nil {
		if err := d.repo.MarkProcessed(ctx, m.ID, d.now()); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mark processed")
			return err
		}
		res.Published++
		return nil
	}

	span.RecordError(pubErr)
	span.SetStatus(codes.Error, "publish")
	retries, err := d.repo.MarkFailed(ctx, m.ID, pubErr.Error())
	if err != nil {
		return err
	}
	res.Failed++

	fields := []zap.Field{
		zap.String("id", m.ID),
		zap.String("event_type", m.EventType),
		zap.String("queue", m.QueueName),
		zap.Int("retry_count", retries),
		zap.Error(pubErr),
	}
	if retries >= d.cfg.MaxRetries {
		res.DeadLettered++
		d.logger.Error("outbox message dead-lettered", fields...)
		return nil
	}
	d.logger.Warn("publish failed, will retry", fields...)
	return nil
}

// Prune deletes processed rows older than the retention window.
func (d *Dispatcher) Prune(ctx context.Context) (int64, error) {
	if d.cfg.Retention <= 0 {
		return 0, nil
	}
	return d.repo.PruneProcessed(ctx, d.now().Add(-d.cfg.Retention))
}

func (d *Dispatcher) Stats(ctx context.Context) (Stats, error) {
	return d.repo.Stats(ctx, d.cfg.MaxRetries)
}

func (d *Dispatcher) DeadLettered(ctx context.Context, limit int) ([]Message, error) {
	return d.repo.DeadLettered(ctx, d.cfg.MaxRetries, limit)
}
