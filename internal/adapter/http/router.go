package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/openbill/arledger/internal/adapter/http/handler"
	"github.com/openbill/arledger/internal/adapter/http/middleware"
	"github.com/openbill/arledger/internal/infrastructure/metrics"
	"github.com/openbill/arledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	PaymentHandler     *handler.PaymentHandler
	EntryHandler       *handler.EntryHandler
	CreditHandler      *handler.CreditHandler
	ConsistencyHandler *handler.ConsistencyHandler
	HealthHandler      *handler.HealthHandler
	IdempotencyStore   usecase.IdempotencyStore
	Logger             *zerolog.Logger
	Metrics            *metrics.Metrics
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	recoveryLogger := zerolog.Nop()
	if cfg.Logger != nil {
		recoveryLogger = *cfg.Logger
	}
	r.Use(middleware.NewRecoveryMiddleware(recoveryLogger).Wrap)
	if cfg.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(*cfg.Logger).Wrap)
	}
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Payments
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", cfg.PaymentHandler.Create)
			r.Get("/{id}", cfg.PaymentHandler.Get)
			r.Put("/{id}", cfg.PaymentHandler.Edit)
			r.Post("/{id}/void", cfg.PaymentHandler.Void)
			r.Delete("/{id}", cfg.PaymentHandler.Delete)
			r.Get("/{id}/entries", cfg.PaymentHandler.ListEntries)
			r.Get("/{id}/breakdown", cfg.PaymentHandler.Breakdown)
			r.Get("/{id}/consistency", cfg.ConsistencyHandler.CheckPayment)
		})

		// Ledger entries
		r.Route("/entries", func(r chi.Router) {
			r.Get("/{id}", cfg.EntryHandler.Get)
			r.Patch("/{id}", cfg.EntryHandler.Update)
			r.Post("/{id}/status", cfg.EntryHandler.SetStatus)
		})

		// Customers
		r.Route("/customers", func(r chi.Router) {
			r.Get("/{id}/payments", cfg.PaymentHandler.ListByCustomer)
			r.Get("/{id}/entries", cfg.EntryHandler.ListByCustomer)
			r.Get("/{id}/credit-balance", cfg.CreditHandler.GetBalance)
			r.Get("/{id}/credit-balance/history", cfg.CreditHandler.GetHistory)
		})

		// Consistency sweep
		r.Get("/consistency/report", cfg.ConsistencyHandler.Report)
	})

	return r
}
