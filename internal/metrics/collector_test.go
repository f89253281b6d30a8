package metrics

import "testing"

func TestCollector_Snapshot_Counters(t *testing.T) {
	c := NewCollector()
	c.IncTotalItems()
	c.IncTotalItems()
	c.IncGetHit()
	c.IncGetMiss()
	c.IncQueueCreated()
	c.IncJournalWriteError()

	snap := c.Snapshot(5, 1024, 2048)
	if snap.TotalItems != 2 {
		t.Errorf("TotalItems = %d", snap.TotalItems)
	}
	if snap.GetHits != 1 || snap.GetMisses != 1 {
		t.Errorf("GetHits=%d GetMisses=%d", snap.GetHits, snap.GetMisses)
	}
	if snap.QueuesCreated != 1 {
		t.Errorf("QueuesCreated = %d", snap.QueuesCreated)
	}
	if snap.JournalWriteErrors != 1 {
		t.Errorf("JournalWriteErrors = %d", snap.JournalWriteErrors)
	}
	if snap.CurrentItems != 5 || snap.CurrentBytes != 1024 {
		t.Errorf("gauges not passed through: %+v", snap)
	}
	if snap.ReservedMemoryRatio != 0.5 {
		t.Errorf("ReservedMemoryRatio = %v, want 0.5", snap.ReservedMemoryRatio)
	}
}

func TestCollector_Snapshot_UnboundedMemoryRatioIsZero(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot(10, 100, 0)
	if snap.ReservedMemoryRatio != 0 {
		t.Errorf("expected 0 ratio when unbounded, got %v", snap.ReservedMemoryRatio)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.IncTotalItems()
	snap := c.Snapshot(0, 0, 0)
	if snap != (Snapshot{}) {
		t.Errorf("expected zero snapshot from nil collector, got %+v", snap)
	}
}
