package eventchain

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Store is a timestamp-ordered chain of events that supports concurrent
// Insert, RemoveAll and Query. Structural changes lock nodes hand over
// hand; queries hold a single node lock at a time
type Store struct {
	logger         *zap.Logger
	metrics        *metrics
	checkpoints    *checkpointIndex
	archive        *ArchiveWorker
	head           atomic.Pointer[node]
	length         atomic.Int64
	interval       int64
	maxCheckpoints int64
	closed         atomic.Bool
}

// NewStore creates an empty Store. When cfg carries an Archiver, removed
// events are handed to it by a background ArchiveWorker until Close
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		logger:         logger,
		metrics:        newMetrics(cfg.Registerer),
		checkpoints:    newCheckpointIndex(),
		interval:       int64(cfg.PaginationInterval),
		maxCheckpoints: int64(cfg.MaxCheckpoints),
	}
	s.head.Store(newNode(nil, nil))

	if cfg.Archive.Archiver != nil {
		s.archive = NewArchiveWorker(
			cfg.Archive, logger, s.metrics.archiveDropped,
		)
	}
	return s, nil
}

// Close stops the archive worker, flushing batches already queued. Any
// later Insert, RemoveAll or Query fails with ErrStoreClosed
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.archive != nil {
		s.archive.Stop()
	}
	return nil
}

// Insert places a copy of ev into the chain after every event whose
// timestamp is less than or equal to its own
func (s *Store) Insert(ev *Event) error {
	if err := checkEvent(ev); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	value := *ev
	s.length.Add(1)
	s.metrics.inserts.Inc()

	for attempt := 0; ; attempt++ {
		start, offset := s.startFor(value.Timestamp, attempt)
		start.mu.Lock()
		if start.valid.Load() {
			s.insertFrom(start, offset, &value)
			return nil
		}
		s.discardCheckpoint(start)
		start.mu.Unlock()

		s.metrics.restarts.Inc()
		s.logger.Debug("insert restarted from removed node",
			zap.Int64("timestamp", value.Timestamp),
			zap.Int("attempt", attempt),
		)
	}
}

// RemoveAll splices every event of typ out of the chain
func (s *Store) RemoveAll(typ EventType) error {
	if err := checkType(typ); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	rm := &removal{archive: s.archive != nil}
	if prev := s.removeLeading(s.lockHead(), typ, rm); prev != nil {
		s.removeFollowing(prev, typ, rm)
	}
	if rm.count == 0 {
		return nil
	}

	s.metrics.removed.Add(float64(rm.count))
	s.logger.Debug("events removed",
		zap.String("type", string(typ)),
		zap.Int("count", rm.count),
	)
	if rm.archive {
		s.archive.Enqueue(typ, rm.events)
	}
	return nil
}

// Length returns the advisory event count. It is only exact once all
// in-flight operations have completed
func (s *Store) Length() int {
	return int(s.length.Load())
}

// Count walks the chain and returns the number of events it holds
func (s *Store) Count() int {
	count := 0
	s.walk(func(*Event) bool {
		count++
		return true
	})
	return count
}

// IsSorted walks the chain and reports whether its timestamps never
// decrease. An empty chain is sorted
func (s *Store) IsSorted() bool {
	sorted := true
	var last *Event
	s.walk(func(ev *Event) bool {
		if last != nil && last.Timestamp > ev.Timestamp {
			sorted = false
			return false
		}
		last = ev
		return true
	})
	return sorted
}

// Checkpoints returns the number of registered checkpoints
func (s *Store) Checkpoints() int {
	return s.checkpoints.len()
}

func (s *Store) nearestBefore(ts int64) (*node, int64) {
	if n, offset := s.checkpoints.nearestBefore(ts); n != nil {
		return n, offset
	}
	return s.head.Load(), 0
}

// startFor picks where a walk toward ts begins. A first attempt uses the
// nearest checkpoint; any retry starts over from the head
func (s *Store) startFor(ts int64, attempt int) (*node, int64) {
	if attempt > 0 {
		return s.head.Load(), 0
	}
	return s.nearestBefore(ts)
}

// discardCheckpoint drops n from the index once it has been found
// removed, so later walks stop landing on it. n is locked
func (s *Store) discardCheckpoint(n *node) {
	if s.checkpoints.discard(n) {
		s.metrics.checkpoints.Set(float64(s.checkpoints.len()))
	}
}

// insertFrom is called with cur locked and valid. It returns with no
// locks held
func (s *Store) insertFrom(cur *node, offset int64, ev *Event) {
	if cur.value == nil {
		cur.value = ev
		cur.mu.Unlock()
		return
	}

	var count int64
	for {
		if cur.value.Timestamp > ev.Timestamp {
			// the slot keeps its identity; its old value moves one down
			cur.next = newNode(cur.value, cur.next)
			cur.value = ev
			cur.mu.Unlock()
			return
		}

		count++
		if pos := s.interval*offset + count; pos%s.interval == 0 {
			s.proposeCheckpoint(cur, pos/s.interval)
		}

		next := cur.next
		if next == nil {
			cur.next = newNode(ev, nil)
			cur.mu.Unlock()
			return
		}
		next.mu.Lock()
		cur.mu.Unlock()
		cur = next
	}
}

// proposeCheckpoint is called with n locked
func (s *Store) proposeCheckpoint(n *node, pos int64) {
	res := s.checkpoints.propose(
		n, n.value.Timestamp, pos, s.checkpointCap(),
	)
	if res == proposalSkipped {
		return
	}
	s.metrics.checkpoints.Set(float64(s.checkpoints.len()))
	if res == proposalReplaced {
		s.logger.Debug("checkpoint replaced",
			zap.Int64("timestamp", n.value.Timestamp),
			zap.Int64("position", pos),
		)
	}
}

func (s *Store) checkpointCap() int64 {
	if s.maxCheckpoints > 0 {
		return s.maxCheckpoints
	}
	return s.length.Load() / s.interval
}

// retarget is called with both old and replacement locked
func (s *Store) retarget(old, replacement *node) {
	s.checkpoints.retarget(old, replacement, replacement.value.Timestamp)
	s.metrics.checkpoints.Set(float64(s.checkpoints.len()))
}

// lockHead returns the current head, locked and valid
func (s *Store) lockHead() *node {
	for {
		head := s.head.Load()
		head.mu.Lock()
		if head.valid.Load() {
			return head
		}
		head.mu.Unlock()
	}
}

// removeLeading removes matching events at the head of the chain. cur
// is the locked head. It returns the first surviving node, still locked,
// or nil once the chain is exhausted and every lock released
func (s *Store) removeLeading(cur *node, typ EventType, rm *removal) *node {
	for cur.value != nil && cur.value.Type == typ {
		s.length.Add(-1)
		rm.add(cur.value)

		next := cur.next
		if next == nil {
			// the head stays behind as the empty sentinel
			cur.value = nil
			s.checkpoints.reset()
			s.metrics.checkpoints.Set(0)
			cur.mu.Unlock()
			return nil
		}

		next.mu.Lock()
		s.head.Store(next)
		cur.invalidate()
		s.retarget(cur, next)
		cur.mu.Unlock()
		cur = next
	}

	if cur.value == nil {
		cur.mu.Unlock()
		return nil
	}
	return cur
}

// removeFollowing removes matching events after prev, which is locked
// and does not match. It returns with no locks held
func (s *Store) removeFollowing(prev *node, typ EventType, rm *removal) {
	for {
		cur := prev.next
		if cur == nil {
			prev.mu.Unlock()
			return
		}

		cur.mu.Lock()
		if cur.value.Type != typ {
			prev.mu.Unlock()
			prev = cur
			continue
		}

		// prev keeps its lock; its outgoing link just changed
		s.length.Add(-1)
		rm.add(cur.value)
		prev.next = cur.next
		cur.invalidate()
		s.retarget(cur, prev)
		cur.mu.Unlock()
	}
}

// removal tallies the events spliced out by one RemoveAll. Copies are
// only kept when they are headed for the archive
type removal struct {
	events  []Event
	count   int
	archive bool
}

func (r *removal) add(ev *Event) {
	r.count++
	if r.archive {
		r.events = append(r.events, *ev)
	}
}

// walk visits every event from the head, one lock at a time. It stops
// early when fn returns false or when it lands on a removed node
func (s *Store) walk(fn func(*Event) bool) {
	cur := s.lockHead()
	for {
		ev, next := cur.value, cur.next
		cur.mu.Unlock()
		if ev == nil || !fn(ev) || next == nil {
			return
		}

		cur = next
		cur.mu.Lock()
		if !cur.valid.Load() {
			cur.mu.Unlock()
			return
		}
	}
}
