package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-reservation/internal/config"
	"github.com/example/ec-reservation/internal/consumer"
	"github.com/example/ec-reservation/internal/infrastructure/kafka"
	"github.com/example/ec-reservation/internal/infrastructure/redisx"
	"github.com/example/ec-reservation/internal/observability"
	"github.com/example/ec-reservation/internal/outbox"
	"go.uber.org/zap"
)

const serviceName = "read-model-consumer"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Consumer] invalid configuration: %v", err)
	}

	logger := observability.NewLogger(serviceName, cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	rdb, err := redisx.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer rdb.Close()

	projector := consumer.NewProjector(rdb)
	dedup := redisx.NewDeduplicator(rdb, cfg.ConsumerGroup, cfg.DedupTTL)
	router, err := consumer.NewRouter(projector.Handlers(), dedup, logger)
	if err != nil {
		logger.Fatal("failed to build event router", zap.Error(err))
	}

	kc := kafka.NewConsumer(cfg.KafkaBrokers, outbox.Queues(), cfg.ConsumerGroup, logger)
	defer kc.Close()

	logger.Info("starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.Strings("topics", outbox.Queues()),
		zap.String("group", cfg.ConsumerGroup))

	if err := kc.Consume(ctx, router.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
