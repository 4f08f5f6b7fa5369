package client

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts and times Content Service requests. Routes are URL
// templates so cardinality stays bounded.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eastworld",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Content Service requests by method, route and outcome.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eastworld",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Content Service request latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *Metrics) observe(method, route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, code).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}
