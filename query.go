package eventchain

import "go.uber.org/zap"

// rangeReader accumulates matches while the chain is walked. When a walk
// has to resume, it passes over everything before the last visited
// timestamp and over as many events at that timestamp as it had already
// visited, so nothing is reported twice
type rangeReader struct {
	snapshot *snapshot
	typ      EventType
	start    int64
	end      int64
	last     int64
	ties     int
	skip     int
	visited  bool
}

// Query returns a Cursor over copies of the events of typ whose
// timestamps fall within [start, end], in ascending timestamp order. The
// result is built by a best-effort walk: writers running concurrently
// may or may not be reflected in it. An empty store or a range with no
// matches produces an empty Cursor
func (s *Store) Query(typ EventType, start, end int64) (*Cursor, error) {
	if err := checkType(typ); err != nil {
		return nil, err
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	r := newRangeReader(typ, start, end)
	s.readRange(r)

	s.metrics.queries.Inc()
	s.metrics.queryResults.Observe(float64(r.snapshot.size))
	return newCursor(r.snapshot), nil
}

func newRangeReader(typ EventType, start, end int64) *rangeReader {
	return &rangeReader{
		snapshot: &snapshot{},
		typ:      typ,
		start:    start,
		end:      end,
	}
}

// readRange drives r across the chain, resuming from the nearest
// checkpoint whenever the walk lands on a removed node
func (s *Store) readRange(r *rangeReader) {
	from := r.start
	for attempt := 0; ; attempt++ {
		n, _ := s.nearestBefore(from)
		if s.readFrom(n, r) {
			return
		}
		if r.visited {
			from = r.last
		}
		r.resume()

		s.metrics.queryResumes.Inc()
		s.logger.Debug("query resumed after removed node",
			zap.Int64("from", from),
			zap.Int("attempt", attempt),
		)
	}
}

// readFrom walks forward from cur holding one node lock at a time. It
// returns false if it lands on a node that has been spliced out, in
// which case the caller resumes from a fresh starting point
func (s *Store) readFrom(cur *node, r *rangeReader) bool {
	for cur != nil {
		cur.mu.Lock()
		if !cur.valid.Load() {
			s.discardCheckpoint(cur)
			cur.mu.Unlock()
			return false
		}
		ev, next := cur.value, cur.next
		cur.mu.Unlock()

		if ev == nil || ev.Timestamp > r.end {
			return true
		}
		r.visit(ev)
		cur = next
	}
	return true
}

func (r *rangeReader) resume() {
	r.skip = r.ties
	r.ties = 0
}

func (r *rangeReader) visit(ev *Event) {
	if ev.Timestamp < r.start {
		return
	}
	if r.visited {
		if ev.Timestamp < r.last {
			return
		}
		if ev.Timestamp == r.last && r.skip > 0 {
			r.skip--
			r.ties++
			return
		}
	}
	if !r.visited || ev.Timestamp > r.last {
		r.last = ev.Timestamp
		r.ties = 0
		r.skip = 0
	}
	r.visited = true
	r.ties++
	if ev.Type == r.typ {
		r.snapshot.append(*ev)
	}
}
