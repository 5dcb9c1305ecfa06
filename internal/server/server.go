package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-facility/internal/config"
	"parking-facility/internal/logging"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
}

// NewRouter mounts the facility API, /health and /metrics. A nil gatherer
// leaves /metrics unmounted.
func NewRouter(handler *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware(handler.cfg.ServiceName))
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/parking", func(r chi.Router) {
		r.Post("/enter", handler.Enter)
		r.Post("/exit", handler.Exit)
		r.Get("/status", handler.Status)
		r.Get("/spots", handler.Spots)
		r.Get("/spots/available", handler.AvailableSpots)
		r.Post("/reserve", handler.Reserve)
		r.Get("/tickets", handler.Tickets)
		r.Get("/tickets/{ticket}", handler.Ticket)
		r.Get("/tickets/{ticket}/quote", handler.Quote)
		r.Post("/tickets/{ticket}/pay", handler.Pay)
		r.Get("/vehicles/{license}", handler.FindByLicense)
		r.Get("/pricing", handler.Pricing)
	})

	return r
}

func NewServer(cfg config.ServerConfig, handler *Handler, gatherer prometheus.Gatherer) *Server {
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      NewRouter(handler, gatherer),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
