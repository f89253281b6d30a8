package config

import (
	"time"

	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/queuename"
)

// Resolve merges a named queue's overrides onto the config's
// default_queue block, producing the effective journal.Config a queue
// should run with. Lookup order is name's own entry, then its fanout
// master's entry (a fanout child inherits its master's config unless it
// has its own entry), then the default_queue block. Fields left unset
// (nil) at every level fall back to journal's zero-value Config
// semantics (unbounded, fsync-per-add, never expire).
func (c *Config) Resolve(name string) journal.Config {
	out := journal.DefaultConfig()
	applyQueueConfig(&out, c.DefaultQueue)
	if qc, ok := c.Queues[name]; ok {
		applyQueueConfig(&out, qc)
		return out
	}
	if master := queuename.MasterOf(name); master != name {
		if qc, ok := c.Queues[master]; ok {
			applyQueueConfig(&out, qc)
		}
	}
	return out
}

func applyQueueConfig(out *journal.Config, qc QueueConfig) {
	if qc.MaxItems != nil {
		out.MaxItems = *qc.MaxItems
	}
	if qc.MaxBytes != nil {
		out.MaxBytes = *qc.MaxBytes
	}
	if qc.MaxItemBytes != nil {
		out.MaxItemBytes = *qc.MaxItemBytes
	}
	if qc.MaxAge != nil {
		out.MaxAge = qc.MaxAge.Duration
	}
	if qc.MaxJournalSize != nil {
		out.MaxJournalSize = *qc.MaxJournalSize
	}
	if qc.SyncInterval != nil {
		out.SyncInterval = qc.SyncInterval.Duration
	}
	if qc.DefaultExpirySeconds != nil {
		out.DefaultExpiry = time.Duration(*qc.DefaultExpirySeconds) * time.Second
	}
}
