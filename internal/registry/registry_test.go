package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/justapithecus/ferryq/internal/alias"
	"github.com/justapithecus/ferryq/internal/config"
	"github.com/justapithecus/ferryq/internal/journal"
	"github.com/justapithecus/ferryq/internal/logging"
	"github.com/justapithecus/ferryq/internal/metrics"
	"github.com/justapithecus/ferryq/internal/placement"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	root := t.TempDir()
	return New(&config.Config{}, placement.New([]string{root}), metrics.NewCollector(), logging.New(), nil)
}

func TestGetOrCreate_ConcurrentCallsReturnSameQueue(t *testing.T) {
	r := newTestRegistry(t)

	const n = 20
	var wg sync.WaitGroup
	results := make([]*journal.Queue, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := r.GetOrCreate("events")
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			results[i] = q
		}(i)
	}
	wg.Wait()

	first := results[0]
	for i, q := range results {
		if q != first {
			t.Fatalf("call %d returned a different queue instance: a creation race let two queues exist", i)
		}
	}
}

func TestIndexFanoutLocked_TracksChildrenUnderMaster(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.GetOrCreate("events+slow"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := r.GetOrCreate("events+fast"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if _, err := r.GetOrCreate("other"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	children := r.FanoutChildren("events")
	if len(children) != 2 {
		t.Fatalf("expected 2 fanout children of events, got %v", children)
	}
	for _, want := range []string{"events+slow", "events+fast"} {
		found := false
		for _, c := range children {
			if c == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q among fanout children, got %v", want, children)
		}
	}

	if got := r.FanoutChildren("other"); len(got) != 0 {
		t.Fatalf("expected no fanout children for a plain queue, got %v", got)
	}
}

func TestDelete_RemovesFromFanoutIndex(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.GetOrCreate("events+slow"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := r.Delete("events+slow"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if children := r.FanoutChildren("events"); len(children) != 0 {
		t.Fatalf("expected no fanout children after delete, got %v", children)
	}
}

func TestShutdown_RejectsSubsequentGetOrCreate(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.GetOrCreate("events"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := r.GetOrCreate("events"); err != ErrShuttingDown {
		t.Fatalf("expected ErrShuttingDown after Shutdown, got %v", err)
	}
}

func TestShutdown_MasksLiveAliases(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterAlias("topic", alias.New("topic", []string{"events"}, nil, r))

	if _, ok := r.LookupAlias("topic"); !ok {
		t.Fatal("expected alias to be registered before shutdown")
	}
	if err := r.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, ok := r.LookupAlias("topic"); ok {
		t.Fatal("expected LookupAlias to report no alias once shutting down")
	}
}

func TestSetConfig_AppliesToLiveQueues(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.GetOrCreate("events"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	now := time.Now()
	if ok, err := r.AddToQueue("events", []byte("one"), nil, now); err != nil || !ok {
		t.Fatalf("seed AddToQueue = %v, %v", ok, err)
	}

	maxItems := 1
	r.SetConfig(&config.Config{Queues: map[string]config.QueueConfig{
		"events": {MaxItems: &maxItems},
	}})

	ok, err := r.AddToQueue("events", []byte("two"), nil, now)
	if err != nil {
		t.Fatalf("AddToQueue after SetConfig: %v", err)
	}
	if ok {
		t.Fatal("expected the new MaxItems=1 cap to reject a second item after SetConfig")
	}
}
