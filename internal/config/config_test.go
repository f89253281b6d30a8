package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ferryd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `root: /var/lib/ferryd
default_queue:
  max_items: 100000
  sync_interval: 1s

queues:
  events:
    max_bytes: 1073741824
    max_age: 1h
  events+slow:
    max_items: 500

aliases:
  fanout_topic:
    targets:
      - events
      - events+slow
    external_targets:
      - kind: webhook
        url: https://hooks.example.com/ferryd
        timeout: 5s

data_roots:
  - /mnt/disk1
  - /mnt/disk2

redis:
  addr: localhost:6379
  db: 2

archive:
  bucket: ferryd-cold
  prefix: journals/
  region: us-east-1
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Root != "/var/lib/ferryd" {
		t.Errorf("root = %q", cfg.Root)
	}
	if cfg.DefaultQueue.MaxItems == nil || *cfg.DefaultQueue.MaxItems != 100000 {
		t.Errorf("default_queue.max_items = %v", cfg.DefaultQueue.MaxItems)
	}
	if cfg.DefaultQueue.SyncInterval == nil || cfg.DefaultQueue.SyncInterval.Duration != time.Second {
		t.Errorf("default_queue.sync_interval = %v", cfg.DefaultQueue.SyncInterval)
	}

	events, ok := cfg.Queues["events"]
	if !ok {
		t.Fatal("expected queues.events")
	}
	if events.MaxBytes == nil || *events.MaxBytes != 1073741824 {
		t.Errorf("events.max_bytes = %v", events.MaxBytes)
	}

	alias, ok := cfg.Aliases["fanout_topic"]
	if !ok {
		t.Fatal("expected aliases.fanout_topic")
	}
	if len(alias.Targets) != 2 {
		t.Fatalf("expected 2 alias targets, got %d", len(alias.Targets))
	}
	if len(alias.ExternalTargets) != 1 || alias.ExternalTargets[0].Kind != "webhook" {
		t.Fatalf("expected 1 webhook external target, got %+v", alias.ExternalTargets)
	}

	if len(cfg.DataRoots) != 2 {
		t.Fatalf("expected 2 data_roots, got %d", len(cfg.DataRoots))
	}
	if cfg.Redis == nil || cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Archive == nil || cfg.Archive.Bucket != "ferryd-cold" {
		t.Fatalf("unexpected archive config: %+v", cfg.Archive)
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != "" {
		t.Errorf("expected empty root, got %q", cfg.Root)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/ferryd.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	yaml := `root: /var/lib/ferryd
bogus_key: should_fail
`
	path := writeTemp(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "bogus_key") {
		t.Errorf("error should mention the unknown key, got: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FERRYD_ROOT", "/expanded/root")

	path := writeTemp(t, "root: ${FERRYD_ROOT}")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Root != "/expanded/root" {
		t.Errorf("got %q", cfg.Root)
	}
}

func TestLoad_DataRootsFallsBackToRoot(t *testing.T) {
	path := writeTemp(t, "root: /single/root")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.DataRoots) != 1 || cfg.DataRoots[0] != "/single/root" {
		t.Fatalf("expected data_roots to fall back to root, got %v", cfg.DataRoots)
	}
}

func TestResolve_MergesDefaultAndNamedOverrides(t *testing.T) {
	def := 1000
	defBytes := int64(1 << 20)
	namedItems := 50
	cfg := &Config{
		DefaultQueue: QueueConfig{MaxItems: &def, MaxBytes: &defBytes},
		Queues: map[string]QueueConfig{
			"events": {MaxItems: &namedItems},
		},
	}

	resolved := cfg.Resolve("events")
	if resolved.MaxItems != 50 {
		t.Errorf("expected named override to win, got MaxItems=%d", resolved.MaxItems)
	}
	if resolved.MaxBytes != 1<<20 {
		t.Errorf("expected default to carry through for unset field, got MaxBytes=%d", resolved.MaxBytes)
	}

	unconfigured := cfg.Resolve("no-such-queue")
	if unconfigured.MaxItems != 1000 {
		t.Errorf("expected default_queue value for unconfigured queue, got %d", unconfigured.MaxItems)
	}
}

func TestResolve_FanoutChildInheritsMasterUnlessItHasItsOwnEntry(t *testing.T) {
	def := 1000
	masterItems := 2000
	childItems := 500
	cfg := &Config{
		DefaultQueue: QueueConfig{MaxItems: &def},
		Queues: map[string]QueueConfig{
			"events":      {MaxItems: &masterItems},
			"events+slow": {MaxItems: &childItems},
		},
	}

	// A child with its own entry uses it, not the master's.
	slow := cfg.Resolve("events+slow")
	if slow.MaxItems != 500 {
		t.Errorf("expected events+slow's own entry to win, got MaxItems=%d", slow.MaxItems)
	}

	// A child with no entry of its own falls back to its master's.
	fast := cfg.Resolve("events+fast")
	if fast.MaxItems != 2000 {
		t.Errorf("expected events+fast to inherit events' entry, got MaxItems=%d", fast.MaxItems)
	}
}
