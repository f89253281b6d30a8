package facade

import (
	"testing"
	"time"

	"github.com/justapithecus/ferryq/internal/alias"
	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/metrics"
	"github.com/justapithecus/ferryq/internal/placement"
	"github.com/justapithecus/ferryq/internal/registry"
)

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	reg := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
	return New(reg, logging.New())
}

func TestFacade_AddRemove_PlainQueue(t *testing.T) {
	f := newTestFacade(t)

	ok, err := f.Add("events", []byte("hello"), nil)
	if err != nil || !ok {
		t.Fatalf("Add = %v, %v", ok, err)
	}

	item, _, ok := f.Remove("events", nil, false)
	if !ok || string(item.Data) != "hello" {
		t.Fatalf("Remove = %+v, %v", item, ok)
	}
}

func TestFacade_Remove_NonexistentQueue_ReturnsImmediately(t *testing.T) {
	f := newTestFacade(t)

	start := time.Now()
	deadline := 2 * time.Second
	_, _, ok := f.Remove("never-added", &deadline, false)
	if ok {
		t.Fatal("expected no item for a queue that was never added to")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("Remove on a nonexistent queue must not block for the deadline")
	}
}

func TestFacade_Add_BroadcastsToFanoutChildren(t *testing.T) {
	f := newTestFacade(t)

	// Materialize the fanout child first: a read never creates a queue,
	// and a master write only reaches children that already exist.
	if _, err := f.reg.GetOrCreate("events+slow"); err != nil {
		t.Fatalf("GetOrCreate = %v", err)
	}

	ok, err := f.Add("events", []byte("broadcast-me"), nil)
	if err != nil || !ok {
		t.Fatalf("Add = %v, %v", ok, err)
	}

	child, _, ok := f.Remove("events+slow", nil, false)
	if !ok || string(child.Data) != "broadcast-me" {
		t.Fatalf("expected fanout child to receive the broadcast item, got %+v, %v", child, ok)
	}

	master, _, ok := f.Remove("events", nil, false)
	if !ok || string(master.Data) != "broadcast-me" {
		t.Fatalf("expected master queue to also receive its own item, got %+v, %v", master, ok)
	}
}

func TestFacade_Add_RedirectsThroughAlias(t *testing.T) {
	f := newTestFacade(t)

	a := alias.New("topic", []string{"events", "events+slow"}, nil, f.reg)
	f.RegisterAlias("topic", a)

	// Materialize events+slow first, same as above.
	if _, err := f.reg.GetOrCreate("events+slow"); err != nil {
		t.Fatalf("GetOrCreate = %v", err)
	}

	ok, err := f.Add("topic", []byte("via-alias"), nil)
	if err != nil || !ok {
		t.Fatalf("Add = %v, %v", ok, err)
	}

	if _, ok := f.reg.Lookup("topic"); ok {
		t.Fatal("an alias name must never materialize its own queue")
	}

	item, _, ok := f.Remove("events", nil, false)
	if !ok || string(item.Data) != "via-alias" {
		t.Fatalf("expected events to receive the aliased item, got %+v, %v", item, ok)
	}
}

func TestFacade_Remove_AliasMasksUnderlyingQueue(t *testing.T) {
	f := newTestFacade(t)

	// A physical queue and an alias can end up sharing a name (e.g. one
	// discovered on disk under a name also configured as an alias). The
	// alias must win: reads against that name always resolve to none,
	// regardless of what the underlying queue holds.
	ok, err := f.reg.AddToQueue("shared", []byte("queue-data"), nil, time.Now())
	if err != nil || !ok {
		t.Fatalf("AddToQueue = %v, %v", ok, err)
	}

	a := alias.New("shared", []string{"events"}, nil, f.reg)
	f.RegisterAlias("shared", a)

	if item, _, ok := f.Remove("shared", nil, false); ok {
		t.Fatalf("expected Remove on an aliased name to resolve to none, got %+v", item)
	}
	if item, ok := f.Peek("shared", nil); ok {
		t.Fatalf("expected Peek on an aliased name to resolve to none, got %+v", item)
	}
}

func TestFacade_Flush_NonexistentQueue_NeverFails(t *testing.T) {
	f := newTestFacade(t)
	if err := f.Flush("no-such-queue"); err != nil {
		t.Fatalf("Flush on nonexistent queue must never fail, got %v", err)
	}
}

func TestFacade_ExpireQueues(t *testing.T) {
	root := t.TempDir()
	one := 1
	maxAge := config.Duration{Duration: 10 * time.Millisecond}
	cfg := &config.Config{DefaultQueue: config.QueueConfig{MaxItems: &one, MaxAge: &maxAge}}
	reg := registry.New(cfg, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
	f := New(reg, logging.New())

	if ok, err := f.Add("ephemeral", []byte("x"), nil); err != nil || !ok {
		t.Fatalf("Add = %v, %v", ok, err)
	}
	item, _, ok := f.Remove("ephemeral", nil, false)
	if !ok {
		t.Fatalf("expected item, got %+v", item)
	}

	time.Sleep(20 * time.Millisecond)
	n := f.ExpireQueues()
	if n != 1 {
		t.Fatalf("expected 1 queue expired, got %d", n)
	}
	if _, ok := reg.Lookup("ephemeral"); ok {
		t.Fatal("expired queue should have been removed from the registry")
	}
}
