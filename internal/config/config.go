package config

import (
	"fmt"
	"sort"
	"time"
)

// Config represents a ferryd.yaml configuration file: the registry's
// root data directory, per-queue overrides, alias declarations, and
// optional external adapters.
type Config struct {
	Root         string                 `yaml:"root"`
	DefaultQueue QueueConfig            `yaml:"default_queue"`
	Queues       map[string]QueueConfig `yaml:"queues"`
	Aliases      map[string]AliasConfig `yaml:"aliases"`
	DataRoots    []string               `yaml:"data_roots"`
	Redis        *RedisConfig           `yaml:"redis,omitempty"`
	Archive      *ArchiveConfig         `yaml:"archive,omitempty"`
	AdminSocket  string                 `yaml:"admin_socket"`
}

// QueueConfig is one queue's durability and capacity limits, read from
// the config file and resolved against DefaultQueue by Config.Resolve
// before being handed to a journal.Queue.
type QueueConfig struct {
	MaxItems             *int      `yaml:"max_items,omitempty"`
	MaxBytes             *int64    `yaml:"max_bytes,omitempty"`
	MaxItemBytes         *int64    `yaml:"max_item_bytes,omitempty"`
	MaxAge               *Duration `yaml:"max_age,omitempty"`
	MaxJournalSize       *int64    `yaml:"max_journal_size,omitempty"`
	SyncInterval         *Duration `yaml:"sync_interval,omitempty"`
	DefaultExpirySeconds *int64    `yaml:"default_expiry_seconds,omitempty"`
}

// AliasConfig declares one alias's write-only fanout targets.
type AliasConfig struct {
	Targets         []string               `yaml:"targets"`
	ExternalTargets []ExternalTargetConfig `yaml:"external_targets,omitempty"`
}

// ExternalTargetConfig is an alias forward destination outside the
// registry: a webhook POST or a Redis channel publish.
type ExternalTargetConfig struct {
	Kind    string            `yaml:"kind"` // "webhook" or "redis"
	URL     string            `yaml:"url,omitempty"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
}

// RedisConfig configures the shared Redis client used by "redis" kind
// external alias targets.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// ArchiveConfig enables background upload of rotated journal segments
// to an S3-compatible bucket for cold retention.
type ArchiveConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix,omitempty"`
	Region      string `yaml:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	PathStyle   bool   `yaml:"path_style,omitempty"`
	DeleteLocal bool   `yaml:"delete_local,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// SortedQueueNames returns the configured queue names in deterministic
// (sorted) order.
func (c *Config) SortedQueueNames() []string {
	names := make([]string, 0, len(c.Queues))
	for name := range c.Queues {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedAliasNames returns the configured alias names in deterministic order.
func (c *Config) SortedAliasNames() []string {
	names := make([]string, 0, len(c.Aliases))
	for name := range c.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
