package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/ec-reservation/internal/api"
	"github.com/example/ec-reservation/internal/config"
	"github.com/example/ec-reservation/internal/infrastructure/kafka"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"github.com/example/ec-reservation/internal/observability"
	"github.com/example/ec-reservation/internal/outbox"
	"go.uber.org/zap"
)

const serviceName = "outbox-dispatcher"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Dispatcher] invalid configuration: %v", err)
	}

	logger := observability.NewLogger(serviceName, cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()
	if err := store.EnsureSchema(ctx, db); err != nil {
		logger.Fatal("failed to apply schema", zap.Error(err))
	}

	listener, err := store.NewOutboxListener(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to listen for outbox notifications", zap.Error(err))
	}
	defer listener.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(store.NewPostgresStore(db), producer, cfg.Outbox, logger)

	server := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           api.NewRouter(api.NewHandlers(dispatcher, db, logger), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.Strings("queues", outbox.Queues()),
		zap.String("ops_addr", cfg.OpsAddr))

	wake := make(chan struct{}, 1)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		listener.Run(ctx, wake)
	}()
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx, wake); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown", zap.Error(err))
	}
	wg.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
