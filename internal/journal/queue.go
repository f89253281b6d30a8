package journal

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is a payload handed back to a reader.
type Item struct {
	Data      []byte
	AddedAt   time.Time
	ExpiresAt *time.Time
}

// Result is what a blocking remove/peek resolves to.
type Result struct {
	Item *Item
	XID  string
	Ok   bool
}

// Future is a handle to a pending blocking read. It resolves exactly
// once, whether from an available item, an elapsed deadline, a flush,
// or queue close.
type Future struct {
	ch chan Result
}

// Wait blocks until the future resolves.
func (f *Future) Wait() Result { return <-f.ch }

type item struct {
	id        uint64
	data      []byte
	addedAt   time.Time
	expiresAt time.Time // zero means no expiry
	segSeq    int
}

func (it *item) toItem() *Item {
	out := &Item{Data: it.data, AddedAt: it.addedAt}
	if !it.expiresAt.IsZero() {
		exp := it.expiresAt
		out.ExpiresAt = &exp
	}
	return out
}

type waiter struct {
	ch            chan Result
	transactional bool
	once          sync.Once
}

func (w *waiter) fulfil(r Result) {
	w.once.Do(func() { w.ch <- r })
}

// ArchiveFunc is invoked with the path of a segment that just stopped
// being the active segment (i.e. rotated away) and still holds
// unacknowledged items, for cold-storage upload; a fully acknowledged
// segment is compacted at rotation instead. It must not block the
// caller for long; implementations
// should hand off to a background worker.
type ArchiveFunc func(realName, path string)

// Queue is the PersistentQueue implementation: a durable FIFO with
// reservation semantics backed by an on-disk journal directory.
type Queue struct {
	name string
	dir  string

	mu       sync.Mutex
	cfg      Config
	closed   bool
	nextID   uint64
	activeSeq int
	segments map[int]*segment

	fifo         *list.List // *item, oldest at Front
	reserved     map[string]*item
	removeWaiters []*waiter
	peekWaiters   []*waiter

	bytes        int64
	lastActivity time.Time

	totalAdds    int64
	totalRemoves int64

	syncCond *sync.Cond
	syncGen  uint64
	stopSync chan struct{}
	syncWg   sync.WaitGroup

	archive ArchiveFunc
}

// New constructs a Queue rooted at dir/name. The directory is created
// if absent. Call Setup before use.
func New(name, dir string, cfg Config, archive ArchiveFunc) (*Queue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapErr("mkdir", dir, err)
	}
	q := &Queue{
		name:     name,
		dir:      dir,
		cfg:      cfg,
		segments: make(map[int]*segment),
		fifo:     list.New(),
		reserved: make(map[string]*item),
		stopSync: make(chan struct{}),
		archive:  archive,
	}
	q.syncCond = sync.NewCond(&q.mu)
	return q, nil
}

// Setup opens/replays the journal and starts the background sync
// ticker if the effective config batches fsyncs.
func (q *Queue) Setup() error {
	seqs, err := discoverSegments(q.dir)
	if err != nil {
		return wrapErr("scan", q.dir, err)
	}

	acked := make(map[uint64]struct{})
	for _, seq := range seqs {
		if err := q.collectAcks(seq, acked); err != nil {
			return err
		}
	}

	var maxID uint64
	for _, seq := range seqs {
		if err := q.replaySegment(seq, acked, &maxID); err != nil {
			return err
		}
	}
	q.nextID = maxID + 1

	activeSeq := 0
	if len(seqs) > 0 {
		activeSeq = seqs[len(seqs)-1]
	}
	seg, err := openSegmentForAppend(q.dir, activeSeq)
	if err != nil {
		return wrapErr("open", segmentPath(q.dir, activeSeq), err)
	}
	// Re-derive this segment's pending count from replay bookkeeping
	// (replaySegment already tallied it into q.segments[activeSeq]).
	if existing, ok := q.segments[activeSeq]; ok {
		seg.pending = existing.pending
	}
	q.segments[activeSeq] = seg
	q.activeSeq = activeSeq
	q.lastActivity = time.Now()

	if q.cfg.SyncInterval > 0 {
		q.syncWg.Add(1)
		go q.syncLoop(q.cfg.SyncInterval)
	}
	return nil
}

func (q *Queue) collectAcks(seq int, acked map[uint64]struct{}) error {
	f, err := os.Open(segmentPath(q.dir, seq))
	if err != nil {
		return wrapErr("open", segmentPath(q.dir, seq), err)
	}
	defer func() { _ = f.Close() }()

	fr := newFrameReader(f)
	for {
		fr2, err := fr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapErr("replay", segmentPath(q.dir, seq), err)
		}
		if fr2.Kind == kindAck {
			acked[fr2.ID] = struct{}{}
		}
	}
}

func (q *Queue) replaySegment(seq int, acked map[uint64]struct{}, maxID *uint64) error {
	f, err := os.Open(segmentPath(q.dir, seq))
	if err != nil {
		return wrapErr("open", segmentPath(q.dir, seq), err)
	}
	defer func() { _ = f.Close() }()

	seg := q.segments[seq]
	if seg == nil {
		seg = &segment{seq: seq, path: segmentPath(q.dir, seq)}
		q.segments[seq] = seg
	}

	fr := newFrameReader(f)
	now := time.Now()
	for {
		wf, err := fr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return wrapErr("replay", segmentPath(q.dir, seq), err)
		}
		if wf.Kind != kindAdd {
			continue
		}
		if wf.ID > *maxID {
			*maxID = wf.ID
		}
		if _, isAcked := acked[wf.ID]; isAcked {
			continue
		}
		var expiresAt time.Time
		if wf.ExpiresAt != 0 {
			expiresAt = time.Unix(0, wf.ExpiresAt)
			if !expiresAt.After(now) {
				seg.pending++ // counts toward compaction even though skipped
				continue       // dropped as expired, never surfaced
			}
		}
		it := &item{
			id:        wf.ID,
			data:      wf.Data,
			addedAt:   time.Unix(0, wf.AddedAt),
			expiresAt: expiresAt,
			segSeq:    seq,
		}
		q.fifo.PushBack(it)
		q.bytes += int64(len(it.data))
		seg.pending++
	}
}

// activeSegment returns the currently open segment for writes. Caller
// must hold q.mu.
func (q *Queue) activeSegment() *segment {
	return q.segments[q.activeSeq]
}

// maybeRotateLocked closes the active segment and opens a new one if
// the active segment has grown past MaxJournalSize. Caller holds q.mu.
func (q *Queue) maybeRotateLocked() {
	if q.cfg.MaxJournalSize <= 0 {
		return
	}
	seg := q.activeSegment()
	if seg.size < q.cfg.MaxJournalSize {
		return
	}
	oldSeq := seg.seq
	newSeq := oldSeq + 1
	newSeg, err := openSegmentForAppend(q.dir, newSeq)
	if err != nil {
		return // keep writing to the oversized segment rather than losing data
	}
	q.segments[newSeq] = newSeg
	q.activeSeq = newSeq

	if seg.pending == 0 {
		q.compactSegmentLocked(oldSeq)
	} else if q.archive != nil {
		path := seg.path
		name := q.name
		go q.archive(name, path)
	}
}

// compactSegmentLocked removes a fully-acked, non-active segment from
// disk. Caller holds q.mu.
func (q *Queue) compactSegmentLocked(seq int) {
	if seq == q.activeSeq {
		return
	}
	seg, ok := q.segments[seq]
	if !ok || seg.pending > 0 {
		return
	}
	if seg.file != nil {
		_ = seg.file.Close()
	}
	_ = os.Remove(seg.path)
	delete(q.segments, seq)
}

// Add appends data as a new durable entry. expiry, if non-nil, is an
// absolute expiration time; otherwise cfg.DefaultExpiry (if set) is
// applied relative to addTime. Returns false (not an error) for soft
// capacity rejection.
func (q *Queue) Add(data []byte, expiry *time.Time, addTime time.Time) (bool, error) {
	if q.cfg.MaxItemBytes > 0 && int64(len(data)) > q.cfg.MaxItemBytes {
		return false, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	if q.cfg.MaxItems > 0 && q.fifo.Len()+len(q.reserved) >= q.cfg.MaxItems {
		q.mu.Unlock()
		return false, nil
	}
	if q.cfg.MaxBytes > 0 && q.bytes+int64(len(data)) > q.cfg.MaxBytes {
		q.mu.Unlock()
		return false, nil
	}

	id := q.nextID
	q.nextID++

	var expiresAt time.Time
	if expiry != nil {
		expiresAt = *expiry
	} else if q.cfg.DefaultExpiry > 0 {
		expiresAt = addTime.Add(q.cfg.DefaultExpiry)
	}
	var expNano int64
	if !expiresAt.IsZero() {
		expNano = expiresAt.UnixNano()
	}

	seg := q.activeSegment()
	buf, err := encodeFrame(wireFrame{
		Kind:      kindAdd,
		ID:        id,
		Data:      data,
		AddedAt:   addTime.UnixNano(),
		ExpiresAt: expNano,
	})
	if err != nil {
		q.mu.Unlock()
		return false, err
	}
	if _, err := seg.file.Write(buf); err != nil {
		q.mu.Unlock()
		return false, wrapErr("write", seg.path, err)
	}
	seg.size += int64(len(buf))
	seg.pending++

	myGen := q.syncGen
	if q.cfg.SyncInterval == 0 {
		if err := seg.file.Sync(); err != nil {
			q.mu.Unlock()
			return false, wrapErr("fsync", seg.path, err)
		}
		q.syncGen++
	}

	it := &item{id: id, data: data, addedAt: addTime, expiresAt: expiresAt, segSeq: seg.seq}
	q.fifo.PushBack(it)
	q.bytes += int64(len(data))
	q.lastActivity = addTime
	q.totalAdds++

	q.maybeRotateLocked()
	q.deliverWaitersLocked()

	if q.cfg.SyncInterval > 0 {
		for q.syncGen <= myGen && !q.closed {
			q.syncCond.Wait()
		}
	}
	q.mu.Unlock()
	return true, nil
}

func (q *Queue) syncLoop(interval time.Duration) {
	defer q.syncWg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			q.mu.Lock()
			if !q.closed {
				seg := q.activeSegment()
				_ = seg.file.Sync()
			}
			q.syncGen++
			q.syncCond.Broadcast()
			q.mu.Unlock()
		case <-q.stopSync:
			return
		}
	}
}

// deliverWaitersLocked serves queued peek/remove waiters against the
// current FIFO head. Caller holds q.mu.
func (q *Queue) deliverWaitersLocked() {
	for {
		if q.fifo.Len() == 0 {
			return
		}
		front := q.fifo.Front()
		it := front.Value.(*item)

		for len(q.peekWaiters) > 0 {
			w := q.peekWaiters[0]
			q.peekWaiters = q.peekWaiters[1:]
			w.fulfil(Result{Item: it.toItem(), Ok: true})
		}

		if len(q.removeWaiters) == 0 {
			return
		}
		w := q.removeWaiters[0]
		q.removeWaiters = q.removeWaiters[1:]
		q.fifo.Remove(front)
		q.totalRemoves++

		var xid string
		if w.transactional {
			xid = uuid.New().String()
			q.reserved[xid] = it
		} else {
			q.ackLocked(it)
		}
		w.fulfil(Result{Item: it.toItem(), XID: xid, Ok: true})
	}
}

// ackLocked records it as durably consumed: an ack frame is appended
// to the active segment (regardless of which segment holds the
// original add), and the originating segment's pending count drops.
// Caller holds q.mu.
func (q *Queue) ackLocked(it *item) {
	seg := q.activeSegment()
	buf, err := encodeFrame(wireFrame{Kind: kindAck, ID: it.id})
	if err == nil {
		if _, werr := seg.file.Write(buf); werr == nil {
			seg.size += int64(len(buf))
			if q.cfg.SyncInterval == 0 {
				_ = seg.file.Sync()
			}
		}
	}
	q.bytes -= int64(len(it.data))
	if orig, ok := q.segments[it.segSeq]; ok {
		orig.pending--
		if orig.pending <= 0 {
			q.compactSegmentLocked(it.segSeq)
		}
	}
}

func (q *Queue) removeWaiterLocked(w *waiter) {
	for i, cand := range q.removeWaiters {
		if cand == w {
			q.removeWaiters = append(q.removeWaiters[:i], q.removeWaiters[i+1:]...)
			return
		}
	}
}

func (q *Queue) removePeekWaiterLocked(w *waiter) {
	for i, cand := range q.peekWaiters {
		if cand == w {
			q.peekWaiters = append(q.peekWaiters[:i], q.peekWaiters[i+1:]...)
			return
		}
	}
}

// WaitRemove returns a Future resolving to the next item (reserved if
// transactional), deadline elapse, flush, or close. deadline nil means
// wait indefinitely.
func (q *Queue) WaitRemove(deadline *time.Duration, transactional bool) *Future {
	w := &waiter{ch: make(chan Result, 1), transactional: transactional}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		w.fulfil(Result{})
		return &Future{ch: w.ch}
	}
	q.removeWaiters = append(q.removeWaiters, w)
	q.deliverWaitersLocked()
	q.mu.Unlock()

	if deadline != nil {
		go func(d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			<-timer.C
			q.mu.Lock()
			q.removeWaiterLocked(w)
			q.mu.Unlock()
			w.fulfil(Result{})
		}(*deadline)
	}
	return &Future{ch: w.ch}
}

// WaitPeek returns a Future resolving to the next item without
// removing it from the queue.
func (q *Queue) WaitPeek(deadline *time.Duration) *Future {
	w := &waiter{ch: make(chan Result, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		w.fulfil(Result{})
		return &Future{ch: w.ch}
	}
	q.peekWaiters = append(q.peekWaiters, w)
	q.deliverWaitersLocked()
	q.mu.Unlock()

	if deadline != nil {
		go func(d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			<-timer.C
			q.mu.Lock()
			q.removePeekWaiterLocked(w)
			q.mu.Unlock()
			w.fulfil(Result{})
		}(*deadline)
	}
	return &Future{ch: w.ch}
}

// Unremove returns a reserved item to the head of the queue. No-op
// (ErrUnknownXID) if xid is not currently reserved. Purely in-memory:
// nothing was ever acked in the journal, so a crash before Unremove
// reproduces the same outcome on replay.
func (q *Queue) Unremove(xid string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.reserved[xid]
	if !ok {
		return ErrUnknownXID
	}
	delete(q.reserved, xid)
	q.fifo.PushFront(it)
	q.deliverWaitersLocked()
	return nil
}

// ConfirmRemove permanently consumes a reserved item. No-op
// (ErrUnknownXID) if xid is not currently reserved.
func (q *Queue) ConfirmRemove(xid string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.reserved[xid]
	if !ok {
		return ErrUnknownXID
	}
	delete(q.reserved, xid)
	q.ackLocked(it)
	return nil
}

// Flush discards every queued item (reserved items are unaffected) and
// wakes any blocked waiters with "no item".
func (q *Queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.fifo.Front(); e != nil; {
		next := e.Next()
		it := e.Value.(*item)
		q.ackLocked(it)
		q.fifo.Remove(e)
		e = next
	}
	for _, w := range q.removeWaiters {
		w.fulfil(Result{})
	}
	for _, w := range q.peekWaiters {
		w.fulfil(Result{})
	}
	q.removeWaiters = nil
	q.peekWaiters = nil
	return nil
}

// DiscardExpired drops expired items from the FIFO head without
// surfacing them to any reader, returning the count discarded. limit
// of 0 means unlimited.
func (q *Queue) DiscardExpired(limit int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	count := 0
	for e := q.fifo.Front(); e != nil; {
		it := e.Value.(*item)
		if it.expiresAt.IsZero() || it.expiresAt.After(now) {
			break
		}
		next := e.Next()
		q.ackLocked(it)
		q.fifo.Remove(e)
		e = next
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return count
}

// Close syncs and releases all file handles. Idempotent. Any blocked
// waiter resolves to "no item".
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, w := range q.removeWaiters {
		w.fulfil(Result{})
	}
	for _, w := range q.peekWaiters {
		w.fulfil(Result{})
	}
	q.removeWaiters = nil
	q.peekWaiters = nil
	q.syncCond.Broadcast()
	var firstErr error
	for _, seg := range q.segments {
		if err := seg.file.Sync(); err != nil && firstErr == nil {
			firstErr = wrapErr("fsync", seg.path, err)
		}
		if err := seg.file.Close(); err != nil && firstErr == nil {
			firstErr = wrapErr("close", seg.path, err)
		}
	}
	q.mu.Unlock()

	close(q.stopSync)
	q.syncWg.Wait()
	return firstErr
}

// DestroyJournal removes all on-disk journal state for this queue.
// Close must be called first.
func (q *Queue) DestroyJournal() error {
	return os.RemoveAll(q.dir)
}

// IsReadyForExpiration reports whether this queue is empty, has no
// outstanding reservations, and has been idle past cfg.MaxAge.
func (q *Queue) IsReadyForExpiration() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cfg.MaxAge <= 0 {
		return false
	}
	if q.fifo.Len() != 0 || len(q.reserved) != 0 {
		return false
	}
	return time.Since(q.lastActivity) >= q.cfg.MaxAge
}

// Stat is one key/value line of dumpStats output.
type Stat struct {
	Key   string
	Value string
}

// DumpStats returns a point-in-time snapshot of queue statistics.
func (q *Queue) DumpStats() []Stat {
	q.mu.Lock()
	defer q.mu.Unlock()
	return []Stat{
		{Key: q.name + ".items", Value: fmt.Sprintf("%d", q.fifo.Len())},
		{Key: q.name + ".bytes", Value: fmt.Sprintf("%d", q.bytes)},
		{Key: q.name + ".reserved_items", Value: fmt.Sprintf("%d", len(q.reserved))},
		{Key: q.name + ".total_items", Value: fmt.Sprintf("%d", q.totalAdds)},
		{Key: q.name + ".total_removes", Value: fmt.Sprintf("%d", q.totalRemoves)},
	}
}

// RemoveStats resets cumulative counters (totalAdds/totalRemoves).
// Gauges (length, bytes, reserved) are unaffected since they reflect
// current state, not history.
func (q *Queue) RemoveStats() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.totalAdds = 0
	q.totalRemoves = 0
}

// Length returns the current number of undelivered, unreserved items.
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.Len()
}

// Bytes returns the current total payload bytes of undelivered items.
func (q *Queue) Bytes() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// MaxMemoryBytes returns the configured memory ceiling (0 = unbounded).
func (q *Queue) MaxMemoryBytes() int64 {
	return q.cfg.MaxBytes
}

// Name returns the queue's real name.
func (q *Queue) Name() string { return q.name }

// Dir returns the queue's on-disk directory.
func (q *Queue) Dir() string { return q.dir }

// SetConfig swaps the effective config in place, honoring an
// in-flight ConfigurationBinder.reload without recreating the queue.
func (q *Queue) SetConfig(cfg Config) {
	q.mu.Lock()
	defer q.mu.Unlock()
	restartSync := q.cfg.SyncInterval != cfg.SyncInterval
	q.cfg = cfg
	if restartSync {
		close(q.stopSync)
		q.syncWg.Wait()
		q.stopSync = make(chan struct{})
		if cfg.SyncInterval > 0 && !q.closed {
			q.syncWg.Add(1)
			go q.syncLoop(cfg.SyncInterval)
		}
	}
}

// DirForRoot computes the on-disk directory for a queue name under root.
func DirForRoot(root, name string) string {
	return filepath.Join(root, name)
}
