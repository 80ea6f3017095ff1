// Package metrics holds the Prometheus collectors shared by the engine, the
// generator guard, the LLM layer and the HTTP server.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decisions counts engine operations by strategy used and outcome kind.
	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_decisions_total",
			Help: "Decision operations by operation, strategy used and outcome",
		},
		[]string{"op", "strategy", "outcome"},
	)

	// Fallbacks counts generative calls that degraded to the heuristic.
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_generator_fallbacks_total",
			Help: "Generative decisions that fell back to the heuristic strategy",
		},
		[]string{"op"},
	)

	DecisionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_decision_duration_seconds",
			Help:    "Decision operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	GeneratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_generator_calls_total",
			Help: "Content generator calls by method and status",
		},
		[]string{"method", "status"},
	)

	GeneratorLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_generator_duration_seconds",
			Help:    "Content generator call latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tutor_generator_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_llm_tokens_total",
			Help: "LLM tokens consumed by model, purpose and direction",
		},
		[]string{"model", "purpose", "direction"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_llm_requests_total",
			Help: "LLM requests by model, purpose and status",
		},
		[]string{"model", "purpose", "status"},
	)

	LLMRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_llm_retries_total",
			Help: "LLM request retries by provider and failure kind",
		},
		[]string{"provider", "reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_cache_lookups_total",
			Help: "Lesson cache lookups by backend and result",
		},
		[]string{"backend", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
