package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hostellite"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend API latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	rateLimitWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_wait_seconds",
			Help:      "Time a backend call spent waiting for the client-side rate limiter.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"endpoint"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_cache_hits_total",
			Help:      "Responses served from the Redis cache.",
		},
		[]string{"endpoint"},
	)

	workflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Booking workflow state transitions by target state.",
		},
		[]string{"state"},
	)

	confirmationTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_tasks_total",
			Help:      "Confirmation ledger tasks by resulting status.",
		},
		[]string{"status"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiLatency, rateLimitWait, cacheHits, workflowTransitions, confirmationTasks)
	})
}

// ObserveAPI records one finished backend call. code 0 means a transport failure.
func ObserveAPI(endpoint string, code int, elapsed time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	apiRequests.WithLabelValues(endpoint, label).Inc()
	apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func ObserveRateLimitWait(endpoint string, waited time.Duration) {
	rateLimitWait.WithLabelValues(endpoint).Observe(waited.Seconds())
}

func IncCacheHit(endpoint string) {
	cacheHits.WithLabelValues(endpoint).Inc()
}

func IncTransition(state string) {
	workflowTransitions.WithLabelValues(state).Inc()
}

func IncConfirmationTask(status string) {
	confirmationTasks.WithLabelValues(status).Inc()
}
