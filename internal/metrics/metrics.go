package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/throttle/internal/middleware"
	"github.com/serroba/throttle/internal/ratelimit"
)

// Decision label values.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
)

// StatsFunc reports the current limiter state.
type StatsFunc func() ratelimit.Stats

// RateLimitMetrics exposes limiter activity on a dedicated registry.
type RateLimitMetrics struct {
	reg        *prometheus.Registry
	handler    http.Handler
	decisions  *prometheus.CounterVec
	retryAfter prometheus.Histogram
	evicted    prometheus.Counter
	sweeps     prometheus.Counter
}

// New returns a fresh registry with the Go and process collectors plus the
// rate limit collectors. Labels never carry client keys to keep cardinality
// bounded.
func New(stats StatsFunc) *RateLimitMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &RateLimitMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by result",
		}, []string{"result"}),
		retryAfter: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ratelimit_retry_after_seconds",
			Help:    "Retry-After reported to denied clients",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_evicted_clients_total",
			Help: "Total idle clients evicted by the sweeper",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_sweeps_total",
			Help: "Total sweeper passes",
		}),
	}

	// pre-create both series so dashboards see zeros before the first request
	m.decisions.WithLabelValues(ResultAllowed)
	m.decisions.WithLabelValues(ResultDenied)

	reg.MustRegister(
		m.decisions,
		m.retryAfter,
		m.evicted,
		m.sweeps,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ratelimit_tracked_clients",
			Help: "Clients currently holding limiter state",
		}, func() float64 {
			return float64(stats().TrackedClients)
		}),
	)

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	m.reg = reg

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *RateLimitMetrics) Handler() http.Handler {
	return m.handler
}

// Registry returns the underlying registry.
func (m *RateLimitMetrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveDecision records a middleware decision. It satisfies middleware.DecisionHook.
func (m *RateLimitMetrics) ObserveDecision(_ context.Context, req middleware.CheckedRequest) {
	if req.Decision.Allowed {
		m.decisions.WithLabelValues(ResultAllowed).Inc()

		return
	}

	m.decisions.WithLabelValues(ResultDenied).Inc()
	m.retryAfter.Observe(float64(req.Decision.RetryAfter))
}

// ObserveSweep records a sweeper pass. It satisfies ratelimit.SweepHook.
func (m *RateLimitMetrics) ObserveSweep(evicted int, _ ratelimit.Stats) {
	m.sweeps.Inc()
	m.evicted.Add(float64(evicted))
}
