package command

import (
	"context"
	"sort"

	"github.com/example/ec-reservation/internal/apperr"
	"github.com/example/ec-reservation/internal/infrastructure/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler executes commands. Every command is exactly one unit of work: the
// ledger rows, the cart or order, and the outbox row commit together or not at all.
type Handler struct {
	uow    store.UnitOfWork
	logger *zap.Logger
	tracer trace.Tracer
}

func NewHandler(uow store.UnitOfWork, logger *zap.Logger) *Handler {
	return &Handler{
		uow:    uow,
		logger: logger.Named("command"),
		tracer: otel.Tracer("github.com/example/ec-reservation/internal/command"),
	}
}

func (h *Handler) run(ctx context.Context, name string, attrs []attribute.KeyValue, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, span := h.tracer.Start(ctx, "command."+name, trace.WithAttributes(attrs...))
	defer span.End()

	err := h.uow.Do(ctx, fn)
	if err == nil {
		return nil
	}

	kind := apperr.KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind.String())
	switch kind {
	case apperr.KindCorruptState:
		h.logger.Error("stock ledger invariant violated", zap.String("command", name), zap.Error(err))
	case apperr.KindUnknown:
		h.logger.Warn("command failed", zap.String("command", name), zap.Error(err))
	}
	return err
}

// sortedKeys gives a stable lock order for multi-row ledger updates.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
