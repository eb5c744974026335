package cache

// Stats is an immutable snapshot of cache counters. Counters are read
// individually with atomic loads; a snapshot taken during concurrent activity
// is internally consistent per counter, not across counters.
type Stats struct {
	// Hits counts TryGet calls served from a valid entry.
	Hits int64
	// Misses counts TryGet calls that found no valid entry.
	Misses int64
	// Evictions counts entries removed by capacity or memory bounds.
	Evictions int64
	// Invalidations counts Invalidate*, Remove and forced-invalidation events.
	Invalidations int64
	// Stores counts admitted Store calls.
	Stores int64
	// Rejects counts Store calls refused by the admission threshold.
	Rejects int64
	// Entries is the current entry count.
	Entries int
	// MemoryBytes estimates memory held by cached buffers.
	MemoryBytes int64
	// GlobalVersion is the tracker's current global version.
	GlobalVersion uint64
}

// HitRate returns hits/(hits+misses), or 0 when no lookups happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Invalidations: c.invalidations.Load(),
		Stores:        c.stores.Load(),
		Rejects:       c.rejects.Load(),
		Entries:       int(c.entries.Load()),
		MemoryBytes:   c.memBytes.Load(),
		GlobalVersion: c.tracker.GlobalVersion(),
	}
}
