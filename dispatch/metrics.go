package dispatch

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests    atomic.Int64
	tokens      atomic.Int64
	delivered   atomic.Int64
	failed      atomic.Int64
	retries     atomic.Int64
	invalidated atomic.Int64
	duration    prometheus.Summary
}

func newDurationSummary() prometheus.Summary {
	return prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace:  "push",
		Subsystem:  "dispatch",
		Name:       "duration_seconds",
		Help:       "duration of request dispatch",
		Objectives: map[float64]float64{0.5: 0.5, 0.85: 0.01, 0.95: 0.0005, 0.99: 0.0001},
	})
}

func registerMetrics(registry *prometheus.Registry, e *engine) {
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "request_count",
		Help:      "count of dispatched requests",
	}, func() float64 {
		return float64(e.metrics.requests.Load())
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "token_count",
		Help:      "count of tokens resolved for delivery",
	}, func() float64 {
		return float64(e.metrics.tokens.Load())
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "delivered_count",
		Help:      "count of delivered notifications",
	}, func() float64 {
		return float64(e.metrics.delivered.Load())
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "failed_count",
		Help:      "count of terminally failed deliveries",
	}, func() float64 {
		return float64(e.metrics.failed.Load())
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "retry_count",
		Help:      "count of retryable delivery failures",
	}, func() float64 {
		return float64(e.metrics.retries.Load())
	}))
	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "push",
		Subsystem: "dispatch",
		Name:      "invalidated_count",
		Help:      "count of tokens invalidated after unregistered replies",
	}, func() float64 {
		return float64(e.metrics.invalidated.Load())
	}))
	registry.MustRegister(e.metrics.duration)
}
