// Package redis implements a Redis pub/sub alias.ForwardTarget.
//
// Publishes forwarded alias items as JSON to a configurable Redis
// channel. Retries with exponential backoff on connection errors.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/ferryq/internal/alias"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "ferryq:alias"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub target.
type Config struct {
	// Addr is the Redis server address, host:port.
	Addr string
	// Password authenticates to Redis, if required.
	Password string
	// DB selects the logical Redis database.
	DB int
	// Channel is the pub/sub channel name (default: ferryq:alias).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Target forwards alias items via Redis PUBLISH.
type Target struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub target from the given config.
func New(cfg Config) (*Target, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis target requires an address")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Target{config: cfg, client: client}, nil
}

// NewWithClient wraps an already-constructed client, letting callers
// (including tests against miniredis) supply their own connection.
func NewWithClient(cfg Config, client *goredis.Client) *Target {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRetries
	}
	return &Target{config: cfg, client: client}
}

// Forward sends the item as a JSON PUBLISH to the configured channel.
// Retries with exponential backoff on failures.
func (t *Target) Forward(ctx context.Context, item *alias.ForwardedItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis: marshal item: %w", err)
	}

	var lastErr error
	attempts := 1 + t.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
		lastErr = t.client.Publish(publishCtx, t.config.Channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases the underlying client.
func (t *Target) Close() error {
	return t.client.Close()
}

var _ alias.ForwardTarget = (*Target)(nil)
