// Package registry owns the live set of journal.Queue and
// alias.Alias instances, keyed by real name. It is the coarse
// single-mutex collaborator described for the registry: lookups and
// map mutation happen under the lock, but the lock is always released
// before a per-queue I/O operation (add/remove/etc.) runs.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/ferryq/internal/alias"
	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/metrics"
	"github.com/justapithecus/ferryq/internal/placement"
	"github.com/justapithecus/ferryq/internal/queuename"
)

// ErrShuttingDown is returned by GetOrCreate (and so by AddToQueue)
// once Shutdown has begun.
var ErrShuttingDown = errors.New("registry: shutting down")

// Registry holds every live queue and alias, plus the fanout index
// mapping a master name to its currently-known fanout children.
type Registry struct {
	mu sync.Mutex

	cfg       *config.Config
	placement *placement.Selector
	metrics   *metrics.Collector
	log       *logging.Logger
	archive   journal.ArchiveFunc

	queues      map[string]*journal.Queue
	queueRoots  map[string]string // real name -> data root it lives under
	fanoutIndex map[string][]string // master name -> known child real names

	aliases map[string]*alias.Alias

	shuttingDown bool
}

// New constructs an empty Registry. Load roots from disk via the
// lifecycle package's boot scan before serving traffic.
func New(cfg *config.Config, plc *placement.Selector, mc *metrics.Collector, log *logging.Logger, archive journal.ArchiveFunc) *Registry {
	return &Registry{
		cfg:         cfg,
		placement:   plc,
		metrics:     mc,
		log:         log,
		archive:     archive,
		queues:      make(map[string]*journal.Queue),
		queueRoots:  make(map[string]string),
		fanoutIndex: make(map[string][]string),
		aliases:     make(map[string]*alias.Alias),
	}
}

// RegisterExisting registers a queue discovered on disk at boot,
// without going through placement (its root is already fixed by where
// it was found).
func (r *Registry) RegisterExisting(name, root string, q *journal.Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[name] = q
	r.queueRoots[name] = root
	r.indexFanoutLocked(name)
}

// indexFanoutLocked records name under its master's fanout child list,
// if name is itself a fanout child. Caller holds r.mu.
func (r *Registry) indexFanoutLocked(name string) {
	parsed, err := queuename.Resolve(name)
	if err != nil || !parsed.IsFanoutChild {
		return
	}
	for _, existing := range r.fanoutIndex[parsed.Master] {
		if existing == name {
			return
		}
	}
	r.fanoutIndex[parsed.Master] = append(r.fanoutIndex[parsed.Master], name)
}

// GetOrCreate returns the queue for name, creating its on-disk journal
// under a placement-selected root if this is the first time name has
// been seen. name must already be validated by queuename.Resolve.
func (r *Registry) GetOrCreate(name string) (*journal.Queue, error) {
	r.mu.Lock()
	if r.shuttingDown {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if q, ok := r.queues[name]; ok {
		r.mu.Unlock()
		return q, nil
	}

	root, err := r.placement.NextRoot()
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("registry: place new queue %q: %w", name, err)
	}
	r.mu.Unlock()

	dir := journal.DirForRoot(root, name)
	cfg := r.cfg.Resolve(name)
	q, err := journal.New(name, dir, cfg, r.archive)
	if err != nil {
		return nil, fmt.Errorf("registry: create queue %q: %w", name, err)
	}
	if err := q.Setup(); err != nil {
		return nil, fmt.Errorf("registry: setup queue %q: %w", name, err)
	}

	r.mu.Lock()
	if existing, ok := r.queues[name]; ok {
		// Lost a creation race: keep the winner, discard ours. Under the
		// same root both share one directory, so the journal is only
		// removed when ours was placed under a different root.
		winnerRoot := r.queueRoots[name]
		r.mu.Unlock()
		_ = q.Close()
		if winnerRoot != root {
			_ = q.DestroyJournal()
		}
		return existing, nil
	}
	r.queues[name] = q
	r.queueRoots[name] = root
	r.indexFanoutLocked(name)
	r.mu.Unlock()

	r.metrics.IncQueueCreated()
	return q, nil
}

// Lookup returns the queue for name if it currently exists, without
// creating it.
func (r *Registry) Lookup(name string) (*journal.Queue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	return q, ok
}

// FanoutChildren returns the currently-known fanout children of
// master, as a snapshot copy.
func (r *Registry) FanoutChildren(master string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fanoutIndex[master]))
	copy(out, r.fanoutIndex[master])
	return out
}

// SetConfig replaces the config used to resolve new queues' effective
// settings and pushes freshly-resolved settings to every currently-live
// queue. Called after a config reload: a live queue keeps its identity
// (same journal.Queue instance, same on-disk journal) but picks up any
// changed QueueConfig immediately.
func (r *Registry) SetConfig(cfg *config.Config) {
	r.mu.Lock()
	r.cfg = cfg
	queues := make(map[string]*journal.Queue, len(r.queues))
	for name, q := range r.queues {
		queues[name] = q
	}
	r.mu.Unlock()

	for name, q := range queues {
		q.SetConfig(cfg.Resolve(name))
	}
}

// Names returns every currently-registered queue's real name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.queues))
	for name := range r.queues {
		out = append(out, name)
	}
	return out
}

// Delete closes and destroys a queue's journal, removing it from the
// registry entirely (used by the delete operation and by expiry
// reaping). No-op if the queue does not exist.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	q, ok := r.queues[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.queues, name)
	delete(r.queueRoots, name)
	r.removeFanoutIndexLocked(name)
	r.mu.Unlock()

	if err := q.Close(); err != nil {
		return err
	}
	return q.DestroyJournal()
}

func (r *Registry) removeFanoutIndexLocked(name string) {
	parsed, err := queuename.Resolve(name)
	if err != nil || !parsed.IsFanoutChild {
		return
	}
	children := r.fanoutIndex[parsed.Master]
	for i, c := range children {
		if c == name {
			r.fanoutIndex[parsed.Master] = append(children[:i], children[i+1:]...)
			return
		}
	}
}

// AddToQueue implements alias.QueueAdder: durably adds to an existing
// or newly-materialized queue by real name.
func (r *Registry) AddToQueue(name string, data []byte, expiry *time.Time, addTime time.Time) (bool, error) {
	q, err := r.GetOrCreate(name)
	if err != nil {
		return false, err
	}
	ok, err := q.Add(data, expiry, addTime)
	if err != nil {
		r.metrics.IncJournalWriteError()
		return false, err
	}
	if ok {
		r.metrics.IncTotalItems()
	}
	return ok, nil
}

// RegisterAlias adds or replaces an alias definition.
func (r *Registry) RegisterAlias(name string, a *alias.Alias) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = a
}

// LookupAlias returns the alias for name, if a live alias with that name
// exists and the registry is not shutting down. Once Shutdown has begun,
// every alias is treated as absent so a write arriving through the alias
// path cannot fire an external-target fanout goroutine past shutdown.
func (r *Registry) LookupAlias(name string) (*alias.Alias, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shuttingDown {
		return nil, false
	}
	a, ok := r.aliases[name]
	return a, ok
}

// AliasNames returns every currently-registered alias's name.
func (r *Registry) AliasNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		out = append(out, name)
	}
	return out
}

// Shutdown marks the registry closed to new operations and
// synchronously closes every queue and alias, one at a time.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.shuttingDown = true
	queues := make([]*journal.Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	aliases := make([]*alias.Alias, 0, len(r.aliases))
	for _, a := range r.aliases {
		aliases = append(aliases, a)
	}
	r.mu.Unlock()

	var firstErr error
	for _, q := range queues {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, a := range aliases {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
