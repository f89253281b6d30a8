// Package alias implements write-only aliases: named fanout targets
// that an add() is forwarded to instead of (or in addition to) being
// durably enqueued under the alias's own name.
package alias

import "context"

// ForwardedItem is what gets handed to an external target when an
// alias add is forwarded outside the registry.
type ForwardedItem struct {
	AliasName string    `json:"alias"`
	Data      []byte    `json:"data"`
	AddedAtMs int64     `json:"added_at_ms"`
}

// ForwardTarget publishes a forwarded item to a downstream system
// outside the queue registry. Implementations must be safe for
// concurrent use by multiple aliases.
type ForwardTarget interface {
	Forward(ctx context.Context, item *ForwardedItem) error
	Close() error
}
