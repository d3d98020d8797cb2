package api

import (
	"net/http"

	"github.com/example/ec-reservation/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(handlers *Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", handlers.Health)
	r.Route("/outbox", func(r chi.Router) {
		r.Get("/stats", handlers.OutboxStats)
		r.Get("/dead-letters", handlers.DeadLetters)
	})

	return r
}
