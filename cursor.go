package eventchain

import (
	"fmt"
	"iter"
)

type (
	// Cursor is a forward-only reader over a Query result. The result is
	// detached from the Store, so reading it never blocks writers. A
	// Cursor is not safe for concurrent use
	Cursor struct {
		next    *snapshotNode
		current *snapshotNode
		size    int
	}

	snapshot struct {
		head *snapshotNode
		tail *snapshotNode
		size int
	}

	snapshotNode struct {
		next  *snapshotNode
		event Event
	}
)

func (s *snapshot) append(ev Event) {
	n := &snapshotNode{event: ev}
	if s.tail == nil {
		s.head = n
	} else {
		s.tail.next = n
	}
	s.tail = n
	s.size++
}

func newCursor(s *snapshot) *Cursor {
	return &Cursor{
		next: s.head,
		size: s.size,
	}
}

// MoveNext advances to the next event, returning false at the end
func (c *Cursor) MoveNext() bool {
	if c.next == nil {
		c.current = nil
		return false
	}
	c.current = c.next
	c.next = c.next.next
	return true
}

// Current returns the event at the Cursor's position. It fails with
// ErrInvalidState before the first successful MoveNext, or once the
// Cursor is exhausted or closed
func (c *Cursor) Current() (Event, error) {
	if c.current == nil {
		return Event{}, fmt.Errorf(
			"%w: cursor has no current event", ErrInvalidState,
		)
	}
	return c.current.event, nil
}

// Remove is not supported
func (c *Cursor) Remove() error {
	return ErrUnsupportedOperation
}

// Close releases the result. It is safe to call more than once
func (c *Cursor) Close() error {
	c.next = nil
	c.current = nil
	return nil
}

// Len returns the number of events in the result
func (c *Cursor) Len() int {
	return c.size
}

// Events yields the events not yet visited, advancing the Cursor
func (c *Cursor) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for c.MoveNext() {
			if !yield(c.current.event) {
				return
			}
		}
	}
}
