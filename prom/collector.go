// Package prom exports engine metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/quergo/quergo"
)

// Collector implements quergo.MetricsCollector on top of a Prometheus
// registerer. All metrics carry the quergo_ prefix.
type Collector struct {
	executeDuration *prometheus.HistogramVec
	executeEntities prometheus.Histogram
	scanDuration    prometheus.Histogram
	scanMatched     prometheus.Histogram
	invalidations   prometheus.Counter
	errors          prometheus.Counter
}

var _ quergo.MetricsCollector = (*Collector)(nil)

// NewCollector registers the engine metrics with reg. Pass
// prometheus.DefaultRegisterer for the process-global registry. Registering
// twice with the same registerer panics, as usual with promauto.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		executeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quergo_execute_duration_seconds",
			Help:    "Duration of query executions",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}, []string{"source"}),
		executeEntities: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quergo_execute_entities",
			Help:    "Entities processed per execution",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quergo_scan_duration_seconds",
			Help:    "Duration of store scans on cache misses",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		scanMatched: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "quergo_scan_matched_entities",
			Help:    "Entities matched per store scan",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		invalidations: factory.NewCounter(prometheus.CounterOpts{
			Name: "quergo_invalidations_total",
			Help: "Explicit cache invalidations",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "quergo_execute_errors_total",
			Help: "Executions that returned an error",
		}),
	}
}

func (c *Collector) RecordExecute(d time.Duration, entities int, cacheHit bool, err error) {
	source := "scan"
	if cacheHit {
		source = "cache"
	}
	c.executeDuration.WithLabelValues(source).Observe(d.Seconds())
	c.executeEntities.Observe(float64(entities))
	if err != nil {
		c.errors.Inc()
	}
}

func (c *Collector) RecordScan(d time.Duration, matched int) {
	c.scanDuration.Observe(d.Seconds())
	c.scanMatched.Observe(float64(matched))
}

func (c *Collector) RecordInvalidation() {
	c.invalidations.Inc()
}
