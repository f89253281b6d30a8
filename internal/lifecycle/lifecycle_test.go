package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/facade"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/metrics"
	"github.com/justapithecus/ferryq/internal/placement"
	"github.com/justapithecus/ferryq/internal/registry"
)

func TestScan_RecoversQueuesFromDisk(t *testing.T) {
	root := t.TempDir()

	// Seed a queue by running a registry against this root once, adding
	// an item, and closing everything down (simulating a prior process).
	cfg := &config.Config{DataRoots: []string{root}}
	reg1 := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
	f1 := facade.New(reg1, logging.New())
	if ok, err := f1.Add("events", []byte("seeded"), nil); err != nil || !ok {
		t.Fatalf("seed Add failed: %v, %v", ok, err)
	}
	if err := reg1.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	reg2 := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
	if err := Scan(cfg, reg2, nil, logging.New()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	f2 := facade.New(reg2, logging.New())
	item, _, ok := f2.Remove("events", nil, false)
	if !ok || string(item.Data) != "seeded" {
		t.Fatalf("expected recovered item, got %+v, %v", item, ok)
	}
}

func TestScan_CreatesMissingDataRoot(t *testing.T) {
	parent := t.TempDir()
	missing := filepath.Join(parent, "does-not-exist-yet")
	cfg := &config.Config{DataRoots: []string{missing}}
	reg := registry.New(cfg, placement.New([]string{missing}), metrics.NewCollector(), logging.New(), nil)

	if err := Scan(cfg, reg, nil, logging.New()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
}

func TestScan_RejectsDataRootThatIsNotADirectory(t *testing.T) {
	parent := t.TempDir()
	notADir := filepath.Join(parent, "a-file")
	if err := os.WriteFile(notADir, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup WriteFile failed: %v", err)
	}
	cfg := &config.Config{DataRoots: []string{notADir}}
	reg := registry.New(cfg, placement.New([]string{notADir}), metrics.NewCollector(), logging.New(), nil)

	err := Scan(cfg, reg, nil, logging.New())
	if err == nil {
		t.Fatal("expected Scan to fail for a data root that is a regular file")
	}
	if !errors.Is(err, ErrInaccessibleQueuePath) {
		t.Fatalf("expected ErrInaccessibleQueuePath, got %v", err)
	}
}

func TestEnsureAccessible_RejectsUnwritableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root ignores directory permissions")
	}
	parent := t.TempDir()
	readOnly := filepath.Join(parent, "read-only")
	if err := os.Mkdir(readOnly, 0o555); err != nil {
		t.Fatalf("setup Mkdir failed: %v", err)
	}
	defer os.Chmod(readOnly, 0o755)

	err := ensureAccessible(readOnly)
	if err == nil {
		t.Fatal("expected ensureAccessible to fail for a read-only directory")
	}
	if !errors.Is(err, ErrInaccessibleQueuePath) {
		t.Fatalf("expected ErrInaccessibleQueuePath, got %v", err)
	}
}

func TestReconcileAliases_NeverRemovesStaleAlias(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{
		DataRoots: []string{root},
		Aliases: map[string]config.AliasConfig{
			"topic": {Targets: []string{"events"}},
		},
	}
	reg := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)

	if err := ReconcileAliases(cfg, reg); err != nil {
		t.Fatalf("ReconcileAliases failed: %v", err)
	}
	if _, ok := reg.LookupAlias("topic"); !ok {
		t.Fatal("expected alias to be registered")
	}

	// Reload with the alias removed from config: the live alias must
	// remain registered.
	reloaded := &config.Config{DataRoots: []string{root}}
	if err := ReconcileAliases(reloaded, reg); err != nil {
		t.Fatalf("ReconcileAliases (reload) failed: %v", err)
	}
	if _, ok := reg.LookupAlias("topic"); !ok {
		t.Fatal("expected stale alias to remain registered after reload")
	}
}

func TestReaper_SweepsOnInterval(t *testing.T) {
	root := t.TempDir()
	one := 1
	maxAge := config.Duration{Duration: 5 * time.Millisecond}
	cfg := &config.Config{DataRoots: []string{root}, DefaultQueue: config.QueueConfig{MaxItems: &one, MaxAge: &maxAge}}
	reg := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
	f := facade.New(reg, logging.New())

	if ok, err := f.Add("ephemeral", []byte("x"), nil); err != nil || !ok {
		t.Fatalf("Add failed: %v, %v", ok, err)
	}
	if _, _, ok := f.Remove("ephemeral", nil, false); !ok {
		t.Fatal("expected item")
	}

	reaper := StartReaper(10*time.Millisecond, f, logging.New())
	defer reaper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Lookup("ephemeral"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected reaper to expire the idle queue")
}
