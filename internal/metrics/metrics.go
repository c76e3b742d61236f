// Package metrics exports pipeline activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memohai/mediagrab/internal/link"
	"github.com/memohai/mediagrab/internal/pipeline"
)

const namespace = "mediagrab"

// Metrics holds the collectors. It implements pipeline.Observer.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	fetchedBytes   prometheus.Counter
	rateLimitWaits prometheus.Counter
	rateLimitSecs  prometheus.Counter
	sweptFiles     prometheus.Counter
}

var _ pipeline.Observer = (*Metrics)(nil)

// New creates collectors on a fresh registry, which also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Handled messages by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fetchedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Bytes streamed from asset sources to scratch storage.",
		}),
		rateLimitWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_waits_total",
			Help:      "Deliveries restarted after a transport rate limit.",
		}),
		rateLimitSecs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds_total",
			Help:      "Time spent waiting out transport rate limits.",
		}),
		sweptFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scratch_swept_files_total",
			Help:      "Stale scratch files removed by the sweeper.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.fetchedBytes,
		m.rateLimitWaits,
		m.rateLimitSecs,
		m.sweptFiles,
	)
	return m
}

// ObserveOutcome counts one handled message.
func (m *Metrics) ObserveOutcome(provider link.Provider, status pipeline.Status) {
	p := provider.String()
	if p == "" {
		p = "none"
	}
	m.requests.WithLabelValues(p, string(status)).Inc()
}

// AddFetchedBytes adds to the fetched byte counter.
func (m *Metrics) AddFetchedBytes(n int64) {
	if n > 0 {
		m.fetchedBytes.Add(float64(n))
	}
}

// ObserveRateLimitWait counts one rate-limit restart and its wait.
func (m *Metrics) ObserveRateLimitWait(wait time.Duration) {
	m.rateLimitWaits.Inc()
	if wait > 0 {
		m.rateLimitSecs.Add(wait.Seconds())
	}
}

// AddSwept counts files removed by a scratch sweep.
func (m *Metrics) AddSwept(n int) {
	if n > 0 {
		m.sweptFiles.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
