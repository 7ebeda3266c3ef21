package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Quote metrics
	// ============================================
	QuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_quotes_total",
			Help: "Quote requests by backend and result",
		},
		[]string{"backend", "result"},
	)

	QuoteFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_quote_fallbacks_total",
			Help: "Quote requests served by a fallback backend",
		},
		[]string{"requested", "effective"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_quote_duration_seconds",
			Help:    "Quote acquisition duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// ============================================
	// Execution metrics
	// ============================================
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_executions_total",
			Help: "Executions reaching a terminal status",
		},
		[]string{"backend", "status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_execution_duration_seconds",
			Help:    "Time from execution start to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	ReceiptWaitTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_receipt_wait_timeouts_total",
		Help: "Executions failed because no receipt appeared in the wait window",
	})

	// ============================================
	// Guard metrics
	// ============================================
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_rate_limit_rejections_total",
		Help: "Requests rejected by the per-wallet rate limit",
	})

	SpamGuardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_spam_guard_rejections_total",
		Help: "Requests rejected by the spam cooldown",
	})

	GuardStoreDegradations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_guard_store_degradations_total",
		Help: "Guard checks that failed open because the store was unavailable",
	})

	// ============================================
	// Payload cache metrics
	// ============================================
	PayloadCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_payload_cache_misses_total",
		Help: "Executions that found no cached signed payload",
	})

	PayloadHashMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swap_payload_hash_mismatches_total",
		Help: "Executions aborted because the supplied payload hash diverged from the signed hash",
	})
)
