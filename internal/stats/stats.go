// Package stats tracks the in-process counters surfaced by the Submission
// Service's /health and /stats operations (§4.6). Counts reset on restart;
// nothing here is durable, by design.
package stats

import "sync/atomic"

// Collector accumulates cache hit/miss counts across the process lifetime.
type Collector struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{}
}

// RecordCacheHit increments the hit counter.
func (c *Collector) RecordCacheHit() {
	c.hits.Add(1)
}

// RecordCacheMiss increments the miss counter.
func (c *Collector) RecordCacheMiss() {
	c.misses.Add(1)
}

// Snapshot is a point-in-time read of the counters plus the derived hit
// rate.
type Snapshot struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Snapshot reads the current counters.
func (c *Collector) Snapshot() Snapshot {
	hits := c.hits.Load()
	misses := c.misses.Load()

	total := hits + misses
	if total == 0 {
		return Snapshot{Hits: hits, Misses: misses}
	}

	return Snapshot{Hits: hits, Misses: misses, HitRate: float64(hits) / float64(total)}
}
