// Package metrics holds the Prometheus collectors of the pipeline. Each
// Collector owns its registry so tests and parallel runners never collide on
// registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	Outcomes      *prometheus.CounterVec
	FetchAttempts *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec
	Runs          prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "citation_outcomes_total",
				Help:      "Terminal citation states by jurisdiction and failure kind",
			},
			[]string{"jurisdiction", "state", "kind"},
		),
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "Network fetch attempts, retries included",
			},
			[]string{"jurisdiction", "result"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Network fetch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"jurisdiction"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Raw payloads served from the archive",
			},
			[]string{"jurisdiction"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Raw payloads that had to be fetched",
			},
			[]string{"jurisdiction"},
		),
		Runs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Completed pipeline runs",
			},
		),
	}
	c.registry.MustRegister(
		c.Outcomes,
		c.FetchAttempts,
		c.FetchDuration,
		c.CacheHits,
		c.CacheMisses,
		c.Runs,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one attempt. result is "ok" or the error kind.
func (c *Collector) ObserveFetch(jurisdiction, result string, d time.Duration) {
	c.FetchAttempts.WithLabelValues(jurisdiction, result).Inc()
	c.FetchDuration.WithLabelValues(jurisdiction).Observe(d.Seconds())
}

func (c *Collector) ObserveOutcome(jurisdiction, state, kind string) {
	c.Outcomes.WithLabelValues(jurisdiction, state, kind).Inc()
}

func (c *Collector) ObserveCache(jurisdiction string, hit bool) {
	if hit {
		c.CacheHits.WithLabelValues(jurisdiction).Inc()
		return
	}
	c.CacheMisses.WithLabelValues(jurisdiction).Inc()
}
