package quergo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus (see the prom subpackage for a ready-made implementation).
type MetricsCollector interface {
	// RecordExecute is called after each Execute call. entities is the
	// number of matched entities dispatched, cacheHit reports whether the
	// set came from the result cache, err is nil on full success.
	RecordExecute(duration time.Duration, entities int, cacheHit bool, err error)

	// RecordScan is called after each full store scan on a cache miss or
	// uncached execution.
	RecordScan(duration time.Duration, matched int)

	// RecordInvalidation is called for each invalidation issued through the
	// engine.
	RecordInvalidation()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordExecute(time.Duration, int, bool, error) {}
func (NoopMetricsCollector) RecordScan(time.Duration, int)                 {}
func (NoopMetricsCollector) RecordInvalidation()                           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ExecuteCount      atomic.Int64
	ExecuteErrors     atomic.Int64
	ExecuteTotalNanos atomic.Int64
	CacheHits         atomic.Int64
	EntitiesTotal     atomic.Int64
	ScanCount         atomic.Int64
	ScanTotalNanos    atomic.Int64
	Invalidations     atomic.Int64
}

// RecordExecute implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExecute(d time.Duration, entities int, cacheHit bool, err error) {
	b.ExecuteCount.Add(1)
	b.ExecuteTotalNanos.Add(d.Nanoseconds())
	b.EntitiesTotal.Add(int64(entities))
	if cacheHit {
		b.CacheHits.Add(1)
	}
	if err != nil {
		b.ExecuteErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(d time.Duration, matched int) {
	b.ScanCount.Add(1)
	b.ScanTotalNanos.Add(d.Nanoseconds())
}

// RecordInvalidation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidation() {
	b.Invalidations.Add(1)
}

// AvgExecuteNanos returns the mean Execute duration, or 0 with no samples.
func (b *BasicMetricsCollector) AvgExecuteNanos() int64 {
	count := b.ExecuteCount.Load()
	if count == 0 {
		return 0
	}
	return b.ExecuteTotalNanos.Load() / count
}
