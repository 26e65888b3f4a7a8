package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Payment metrics
	PaymentsCreated   prometheus.Counter
	PaymentsEdited    prometheus.Counter
	PaymentsVoided    prometheus.Counter
	PaymentsDeleted   prometheus.Counter
	PaymentAmount     prometheus.Histogram
	ReconcileDuration prometheus.Histogram
	PaymentErrors     *prometheus.CounterVec

	// Entry metrics
	EntriesCreated   prometheus.Counter
	EntriesDeleted   prometheus.Counter
	EntryTransitions *prometheus.CounterVec

	// Credit balance metrics
	CreditPosted      prometheus.Counter
	CreditOverspends  prometheus.Counter
	CreditCacheHits   prometheus.Counter
	CreditCacheMisses prometheus.Counter

	// Outbox metrics
	EventsPublished prometheus.Counter
	EventsPending   prometheus.Gauge

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec
	TxRetries     prometheus.Counter

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Payment metrics
		PaymentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_payments_created_total",
			Help: "Total number of payments created",
		}),
		PaymentsEdited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_payments_edited_total",
			Help: "Total number of payment edits applied",
		}),
		PaymentsVoided: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_payments_voided_total",
			Help: "Total number of payments voided",
		}),
		PaymentsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_payments_deleted_total",
			Help: "Total number of payments deleted",
		}),
		PaymentAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arledger_payment_amount",
			Help:    "Payment amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arledger_reconcile_duration_seconds",
			Help:    "Duration of applied list reconciliation",
			Buckets: prometheus.DefBuckets,
		}),
		PaymentErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_payment_errors_total",
				Help: "Total number of payment errors by type",
			},
			[]string{"error_type"},
		),

		// Entry metrics
		EntriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_entries_created_total",
			Help: "Total number of ledger entries created",
		}),
		EntriesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_entries_deleted_total",
			Help: "Total number of ledger entries deleted",
		}),
		EntryTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_entry_transitions_total",
				Help: "Total entry status transitions",
			},
			[]string{"from", "to"},
		),

		// Credit balance metrics
		CreditPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_credit_movements_total",
			Help: "Total credit balance movements posted",
		}),
		CreditOverspends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_credit_overspends_blocked_total",
			Help: "Total credit movements blocked by the balance floor",
		}),
		CreditCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_credit_cache_hits_total",
			Help: "Total credit balance cache hits",
		}),
		CreditCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_credit_cache_misses_total",
			Help: "Total credit balance cache misses",
		}),

		// Outbox metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_events_published_total",
			Help: "Total outbox events published",
		}),
		EventsPending: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arledger_events_pending",
			Help: "Current number of unpublished outbox events",
		}),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arledger_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),
		TxRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arledger_tx_retries_total",
			Help: "Total transaction retries after serialization conflicts",
		}),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),
	}
}
