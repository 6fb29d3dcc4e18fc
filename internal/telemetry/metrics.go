package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	QueriesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "rca_queries_submitted_total", Help: "Queries accepted and queued"})
	QueriesCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "rca_queries_completed_total", Help: "Queries that produced a report"})
	QueriesFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "rca_queries_failed_total", Help: "Queries that ended in a failed status"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "rca_rate_limit_rejects_total", Help: "Submissions rejected by the rate limiter"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "rca_queue_depth", Help: "Jobs waiting in the query queue"})

	AgentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rca_agent_failures_total", Help: "Agent invocations that ended in a contained failure"},
		[]string{"domain"},
	)
	ProcessingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rca_processing_seconds",
		Help:    "End-to-end time per job from pop to terminal write",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			QueriesSubmitted,
			QueriesCompleted,
			QueriesFailed,
			RateLimitRejects,
			QueueDepthGauge,
			AgentFailures,
			ProcessingSeconds,
		)
	})
	return promhttp.Handler()
}
