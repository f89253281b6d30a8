package alias

import (
	"context"
	"time"
)

// QueueAdder is the registry capability an Alias needs: durably adding
// an item to one of its real queue targets by name.
type QueueAdder interface {
	AddToQueue(name string, data []byte, expiry *time.Time, addTime time.Time) (bool, error)
}

// Alias is a named, write-only fanout: add() is redirected to every
// configured queue target and, optionally, published to external
// targets (webhook, Redis) outside the registry. An alias never holds
// items itself and is never readable.
type Alias struct {
	name            string
	queueTargets    []string
	externalTargets []ForwardTarget
	adder           QueueAdder
}

// New constructs an Alias. queueTargets names real queues this alias
// redirects adds to; externalTargets are fired-and-forgotten outside
// the registry and never affect the returned durability signal.
func New(name string, queueTargets []string, externalTargets []ForwardTarget, adder QueueAdder) *Alias {
	return &Alias{
		name:            name,
		queueTargets:    queueTargets,
		externalTargets: externalTargets,
		adder:           adder,
	}
}

// Name returns the alias's name.
func (a *Alias) Name() string { return a.name }

// Targets returns the configured queue target names.
func (a *Alias) Targets() []string { return a.queueTargets }

// Add redirects data to every queue target and fires external targets
// in the background. The returned bool is true only if every queue
// target durably accepted the item (a target that does not currently
// exist is created by the adder, as for a direct write; a target the
// adder rejects or fails on makes the result false) — a caller relying
// on an alias's durability signal should be able to trust that every
// named target actually has the item.
// External targets never gate this return value.
func (a *Alias) Add(data []byte, expiry *time.Time, addTime time.Time) (bool, error) {
	ok := true
	var firstErr error
	for _, target := range a.queueTargets {
		added, err := a.adder.AddToQueue(target, data, expiry, addTime)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil || !added {
			ok = false
		}
	}

	for _, ext := range a.externalTargets {
		ext := ext
		item := &ForwardedItem{AliasName: a.name, Data: data, AddedAtMs: addTime.UnixMilli()}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = ext.Forward(ctx, item) // best effort; forwarding failures are not surfaced to the writer
		}()
	}

	return ok, firstErr
}

// Close releases every external target's resources.
func (a *Alias) Close() error {
	var firstErr error
	for _, ext := range a.externalTargets {
		if err := ext.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
