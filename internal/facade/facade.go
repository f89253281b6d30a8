// Package facade implements the operation-level API a transport (the
// admin socket, the CLI, or tests) calls against the registry: add,
// remove, peek, unremove, confirmRemove, flush, delete, and the
// periodic expiry sweeps. It owns fanout broadcast and exposes a
// synchronous, blocking API even though the underlying journal.Queue
// resolves reads via an internal Future.
package facade

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/justapithecus/ferryq/internal/alias"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/queuename"
	"github.com/justapithecus/ferryq/internal/registry"
)

// Facade is the operation-level entry point over a Registry.
type Facade struct {
	reg *registry.Registry
	log *logging.Logger
}

// New constructs a Facade over reg.
func New(reg *registry.Registry, log *logging.Logger) *Facade {
	return &Facade{reg: reg, log: log}
}

// Add durably appends data under name. If name is a registered alias,
// the add is redirected per the alias's targets instead of creating a
// queue named after the alias. If name is a plain (non-fanout) queue
// name, the item is also broadcast, best-effort, to every
// currently-known "name+tag" fanout child — a child that does not yet
// exist is never implicitly created by a master write; only a write
// addressed to "name+tag" itself materializes it.
func (f *Facade) Add(name string, data []byte, expiry *time.Time) (bool, error) {
	now := time.Now()

	if a, ok := f.reg.LookupAlias(name); ok {
		return a.Add(data, expiry, now)
	}

	parsed, err := queuename.Resolve(name)
	if err != nil {
		return false, err
	}

	ok, err := f.reg.AddToQueue(name, data, expiry, now)
	if err != nil || parsed.IsFanoutChild {
		return ok, err
	}

	for _, child := range f.reg.FanoutChildren(name) {
		if _, cerr := f.reg.AddToQueue(child, data, expiry, now); cerr != nil {
			f.log.Warn("fanout broadcast failed", zap.String("child", child), zap.Error(cerr))
		}
	}
	return ok, nil
}

// Item mirrors journal.Item for facade callers that should not import
// the journal package directly.
type Item = journal.Item

// Remove blocks (up to deadline, nil meaning indefinitely) for the
// next item in name's queue. If name is a registered alias, it resolves
// immediately to none: an alias is a write-side fanout target, never a
// readable queue, even if a physical queue happens to share its name. A
// name with no existing physical queue also resolves immediately with
// ok=false rather than creating one: a read never materializes a queue
// on its own.
func (f *Facade) Remove(name string, deadline *time.Duration, transactional bool) (*Item, string, bool) {
	if _, ok := f.reg.LookupAlias(name); ok {
		return nil, "", false
	}
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil, "", false
	}
	res := q.WaitRemove(deadline, transactional).Wait()
	return res.Item, res.XID, res.Ok
}

// Peek blocks like Remove but never removes the item from the queue. An
// alias name resolves immediately to none, for the same reason as Remove.
func (f *Facade) Peek(name string, deadline *time.Duration) (*Item, bool) {
	if _, ok := f.reg.LookupAlias(name); ok {
		return nil, false
	}
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil, false
	}
	res := q.WaitPeek(deadline).Wait()
	return res.Item, res.Ok
}

// ConfirmRemove permanently consumes a reservation. No-op if name or
// xid do not currently exist/resolve.
func (f *Facade) ConfirmRemove(name, xid string) error {
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil
	}
	if err := q.ConfirmRemove(xid); err != nil && !errors.Is(err, journal.ErrUnknownXID) {
		return err
	}
	return nil
}

// Unremove releases a reservation back to the head of the queue.
// No-op if name or xid do not currently exist/resolve.
func (f *Facade) Unremove(name, xid string) error {
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil
	}
	if err := q.Unremove(xid); err != nil && !errors.Is(err, journal.ErrUnknownXID) {
		return err
	}
	return nil
}

// Flush discards a queue's items. Never fails observably: a name with
// no physical queue is a no-op.
func (f *Facade) Flush(name string) error {
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil
	}
	return q.Flush()
}

// FlushAll flushes every currently-registered queue.
func (f *Facade) FlushAll() {
	for _, name := range f.reg.Names() {
		_ = f.Flush(name)
	}
}

// Delete permanently removes a queue and its on-disk journal.
func (f *Facade) Delete(name string) error {
	return f.reg.Delete(name)
}

// Stats returns dumpStats lines for every currently-registered queue.
func (f *Facade) Stats() []journal.Stat {
	var all []journal.Stat
	for _, name := range f.reg.Names() {
		if q, ok := f.reg.Lookup(name); ok {
			all = append(all, q.DumpStats()...)
		}
	}
	return all
}

// Names returns every currently-registered queue's real name, used by
// the admin socket's list verb.
func (f *Facade) Names() []string {
	return f.reg.Names()
}

// AliasNames returns every currently-registered alias's name, used by
// the admin socket's list verb.
func (f *Facade) AliasNames() []string {
	return f.reg.AliasNames()
}

// InspectQueue returns dumpStats lines for a single queue, or ok=false
// if it does not currently exist.
func (f *Facade) InspectQueue(name string) ([]journal.Stat, bool) {
	q, ok := f.reg.Lookup(name)
	if !ok {
		return nil, false
	}
	return q.DumpStats(), true
}

// ExpireQueues deletes every queue that IsReadyForExpiration, i.e. has
// been empty and unreserved past its configured MaxAge. Called
// periodically by the lifecycle reaper.
func (f *Facade) ExpireQueues() int {
	count := 0
	for _, name := range f.reg.Names() {
		q, ok := f.reg.Lookup(name)
		if !ok || !q.IsReadyForExpiration() {
			continue
		}
		if err := f.reg.Delete(name); err == nil {
			count++
		}
	}
	return count
}

// DiscardExpiredItems runs DiscardExpired(0) over every currently
// registered queue, reclaiming expired items without a remove. Called
// periodically by the lifecycle reaper.
func (f *Facade) DiscardExpiredItems() int {
	total := 0
	for _, name := range f.reg.Names() {
		if q, ok := f.reg.Lookup(name); ok {
			total += q.DiscardExpired(0)
		}
	}
	return total
}

// RegisterAlias installs an alias definition, replacing any existing
// definition of the same name.
func (f *Facade) RegisterAlias(name string, a *alias.Alias) {
	f.reg.RegisterAlias(name, a)
}
