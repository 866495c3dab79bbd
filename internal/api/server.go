package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/welfareshield/internal/domain"
	"github.com/opensource-finance/welfareshield/internal/rules"
	"github.com/opensource-finance/welfareshield/internal/session"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, tracer trace.Tracer, sessions *session.Manager, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string) *Server {
	handler := NewHandler(sessions, repo, cache, bus, engine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)            // CORS for the dashboard
	router.Use(RecoverMiddleware)         // Recover from panics
	router.Use(TracingMiddleware(tracer)) // OpenTelemetry tracing
	router.Use(LoggingMiddleware)         // Request logging and metrics
	router.Use(middleware.RealIP)         // Extract real IP
	router.Use(middleware.Compress(5))    // Gzip compression

	// Operational endpoints (no session required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// API routes (session required)
	router.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)

		// Dashboard
		r.Get("/kpis", handler.KPIs)
		r.Get("/beneficiaries", handler.ListBeneficiaries)
		r.Get("/transactions", handler.ListTransactions)
		r.Get("/risk-trend", handler.RiskTrend)
		r.Get("/regional-anomalies", handler.RegionalAnomalies)
		r.Get("/anomaly-alerts", handler.AnomalyAlerts)
		r.Get("/regions", handler.Regions)
		r.Get("/rollups/monthly", handler.MonthlyRollups)

		// Investigation
		r.Get("/profile/{entityType}/{id}", handler.GetProfile)
		r.Get("/audit/views", handler.ListProfileViews)
		r.Post("/session/reset", handler.ResetSession)

		// Watch rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)
		r.Delete("/rules/{id}", handler.DeleteRule)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
