// Package lifecycle boots a Registry from on-disk state, reconciles
// alias definitions from configuration, and runs the periodic expiry
// reaper. It is the daemon's startup/shutdown/reload collaborator.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/justapithecus/ferryq/internal/alias"
	aliasredis "github.com/justapithecus/ferryq/internal/alias/redis"
	aliaswebhook "github.com/justapithecus/ferryq/internal/alias/webhook"
	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/registry"
)

// ErrInaccessibleQueuePath is the hard error Scan raises when a
// configured data root exists but is not a writable directory (or
// cannot be created). Unlike the soft conditions classified by
// journal.Error, this is fatal: the daemon cannot serve any queue under
// a root it cannot write to, so Scan fails the whole boot rather than
// skipping the root.
var ErrInaccessibleQueuePath = errors.New("lifecycle: inaccessible queue path")

// ensureAccessible verifies root is a directory ferryd can write to,
// creating it if absent. Returns an error wrapping
// ErrInaccessibleQueuePath if root cannot be created, exists but is not
// a directory, or exists but is not writable.
func ensureAccessible(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(root, 0o755); mkErr != nil {
				return fmt.Errorf("lifecycle: create data root %q: %w: %v", root, ErrInaccessibleQueuePath, mkErr)
			}
			return nil
		}
		return fmt.Errorf("lifecycle: data root %q: %w: %v", root, ErrInaccessibleQueuePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("lifecycle: data root %q: %w: not a directory", root, ErrInaccessibleQueuePath)
	}

	probe := filepath.Join(root, ".ferryd-access-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("lifecycle: data root %q: %w: %v", root, ErrInaccessibleQueuePath, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}

// Scan discovers every queue directory under cfg's data roots and
// registers it with reg, replaying its journal. Call once at boot,
// before serving any traffic.
func Scan(cfg *config.Config, reg *registry.Registry, archive journal.ArchiveFunc, log *logging.Logger) error {
	for _, root := range cfg.DataRoots {
		if err := ensureAccessible(root); err != nil {
			return err
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("lifecycle: scan data root %q: %w", root, err)
		}

		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			dir := filepath.Join(root, name)
			qcfg := cfg.Resolve(name)

			q, err := journal.New(name, dir, qcfg, archive)
			if err != nil {
				return fmt.Errorf("lifecycle: open queue %q: %w", name, err)
			}
			if err := q.Setup(); err != nil {
				return fmt.Errorf("lifecycle: replay queue %q: %w", name, err)
			}
			reg.RegisterExisting(name, root, q)
			log.Info("queue recovered from disk", zap.String("name", name), zap.String("root", root))
		}
	}

	return ReconcileAliases(cfg, reg)
}

// ReconcileAliases installs every alias currently present in cfg,
// overwriting a prior definition of the same name. An alias that
// existed before but is absent from cfg is left running: reconcile is
// additive, not subtractive, so a malformed reload never silently
// drops a writer's fanout destination out from under it. The admin
// delete operation removes queues only, not aliases: an alias absent
// from cfg stays registered until the process restarts.
func ReconcileAliases(cfg *config.Config, reg *registry.Registry) error {
	for name, ac := range cfg.Aliases {
		externals := make([]alias.ForwardTarget, 0, len(ac.ExternalTargets))
		for _, ext := range ac.ExternalTargets {
			target, err := buildExternalTarget(cfg, ext)
			if err != nil {
				return fmt.Errorf("lifecycle: alias %q external target: %w", name, err)
			}
			externals = append(externals, target)
		}
		reg.RegisterAlias(name, alias.New(name, ac.Targets, externals, reg))
	}
	return nil
}

func buildExternalTarget(cfg *config.Config, ext config.ExternalTargetConfig) (alias.ForwardTarget, error) {
	switch ext.Kind {
	case "webhook":
		return aliaswebhook.New(aliaswebhook.Config{
			URL:     ext.URL,
			Headers: ext.Headers,
			Timeout: ext.Timeout.Duration,
		})
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis external target requires a top-level redis config")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return aliasredis.NewWithClient(aliasredis.Config{
			Channel: ext.Channel,
			Timeout: ext.Timeout.Duration,
		}, client), nil
	default:
		return nil, fmt.Errorf("unknown external target kind %q", ext.Kind)
	}
}

// Reaper periodically sweeps expired items and expired (empty, idle
// past MaxAge) queues.
type Reaper struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// ExpireSweeper is the subset of facade.Facade the reaper needs.
type ExpireSweeper interface {
	DiscardExpiredItems() int
	ExpireQueues() int
}

// StartReaper launches a background goroutine running f's expiry
// sweeps every interval, until Stop is called.
func StartReaper(interval time.Duration, f ExpireSweeper, log *logging.Logger) *Reaper {
	r := &Reaper{interval: interval, stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				items := f.DiscardExpiredItems()
				queues := f.ExpireQueues()
				if items > 0 || queues > 0 {
					log.Info("expiry sweep", zap.Int("items_discarded", items), zap.Int("queues_expired", queues))
				}
			case <-r.stop:
				return
			}
		}
	}()
	return r
}

// Stop halts the reaper and waits for its goroutine to exit.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}
