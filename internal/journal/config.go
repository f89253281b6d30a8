package journal

import "time"

// Config is the effective, per-queue configuration resolved by
// ConfigurationBinder (master-fallback already applied by the caller).
type Config struct {
	// MaxItems caps the number of undelivered items; 0 means unbounded.
	MaxItems int
	// MaxBytes caps total undelivered payload bytes; 0 means unbounded.
	MaxBytes int64
	// MaxItemBytes caps a single item's payload size; 0 means unbounded.
	MaxItemBytes int64
	// MaxAge is how long an empty queue may sit idle before
	// isReadyForExpiration reports true. 0 disables queue expiration.
	MaxAge time.Duration
	// MaxJournalSize rotates the active segment once it exceeds this
	// many bytes. 0 means never rotate (single segment).
	MaxJournalSize int64
	// SyncInterval batches fsyncs on this cadence; 0 means fsync on
	// every add (fully synchronous).
	SyncInterval time.Duration
	// DefaultExpiry is applied to items added without an explicit
	// expiry. 0 means items never expire unless the caller sets one.
	DefaultExpiry time.Duration
}

// DefaultConfig returns the zero-value config: unbounded, fsync-per-add,
// never expire, never rotate. Every Config field defaults safely to
// "off", so a queue created with no configuration at all behaves like
// a plain unbounded durable FIFO.
func DefaultConfig() Config {
	return Config{}
}
