// Package metrics exposes the service's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDegraded  = "degraded"
	OutcomeDuplicate = "duplicate"
	OutcomeBot       = "bot"
)

// Metrics holds the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	ResearchRuns        *prometheus.CounterVec
	ResearchDuration    prometheus.Histogram
	Publishes           *prometheus.CounterVec
	Votes               *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector under namespace on a fresh registry, so
// tests can build as many instances as they like.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ResearchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_runs_total",
			Help:      "Research pipeline runs by outcome",
		}, []string{"outcome"}),
		ResearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_run_duration_seconds",
			Help:      "Wall time of a full research run",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Publish attempts by mode (single, batch) and outcome",
		}, []string{"mode", "outcome"}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Vote requests by outcome",
		}, []string{"outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.ResearchRuns, m.ResearchDuration, m.Publishes, m.Votes, m.HTTPRequestDuration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveResearch records one research run. A nil receiver is a no-op.
func (m *Metrics) ObserveResearch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResearchRuns.WithLabelValues(outcome).Inc()
	m.ResearchDuration.Observe(d.Seconds())
}

// ObservePublish records one publish attempt. A nil receiver is a no-op.
func (m *Metrics) ObservePublish(mode, outcome string) {
	if m == nil {
		return
	}
	m.Publishes.WithLabelValues(mode, outcome).Inc()
}

// ObserveVote records one vote request. A nil receiver is a no-op.
func (m *Metrics) ObserveVote(outcome string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request latency labelled by the matched route
// template, keeping label cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
