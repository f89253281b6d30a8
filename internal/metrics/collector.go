// Package metrics provides registry-wide operational counters.
//
// The Collector accumulates counts across the registry's lifetime. It
// is a leaf package with no internal dependencies, mirroring how a
// per-run metrics collector stays independent of the components it
// measures.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of registry metrics.
// Safe to read concurrently after creation.
type Snapshot struct {
	TotalItems int64
	GetHits    int64
	GetMisses  int64

	QueuesCreated int64
	QueuesExpired int64

	JournalWriteErrors int64
	AliasForwardErrors int64

	CurrentItems           int64
	CurrentBytes           int64
	ReservedMemoryRatio    float64 // CurrentBytes / MaxMemoryBytes, 0 if unbounded
}

// Collector accumulates registry-wide counters. Thread-safe via
// sync.Mutex. All increment methods are nil-receiver safe so a
// component can hold a *Collector that is nil in tests without
// special-casing every call site.
type Collector struct {
	mu sync.Mutex

	totalItems int64
	getHits    int64
	getMisses  int64

	queuesCreated int64
	queuesExpired int64

	journalWriteErrors int64
	aliasForwardErrors int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) IncTotalItems() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.totalItems++
	c.mu.Unlock()
}

func (c *Collector) IncGetHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getHits++
	c.mu.Unlock()
}

func (c *Collector) IncGetMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.getMisses++
	c.mu.Unlock()
}

func (c *Collector) IncQueueCreated() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.queuesCreated++
	c.mu.Unlock()
}

func (c *Collector) IncQueueExpired() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.queuesExpired++
	c.mu.Unlock()
}

func (c *Collector) IncJournalWriteError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.journalWriteErrors++
	c.mu.Unlock()
}

func (c *Collector) IncAliasForwardError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.aliasForwardErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable view of the cumulative counters merged
// with the live gauges supplied by the caller (current item count,
// byte count, and the configured memory ceiling used to derive the
// reserved-memory ratio).
func (c *Collector) Snapshot(currentItems, currentBytes, maxMemoryBytes int64) Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var ratio float64
	if maxMemoryBytes > 0 {
		ratio = float64(currentBytes) / float64(maxMemoryBytes)
	}

	return Snapshot{
		TotalItems:          c.totalItems,
		GetHits:             c.getHits,
		GetMisses:           c.getMisses,
		QueuesCreated:       c.queuesCreated,
		QueuesExpired:       c.queuesExpired,
		JournalWriteErrors:  c.journalWriteErrors,
		AliasForwardErrors:  c.aliasForwardErrors,
		CurrentItems:        currentItems,
		CurrentBytes:        currentBytes,
		ReservedMemoryRatio: ratio,
	}
}
