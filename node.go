package eventchain

import (
	"sync"
	"sync/atomic"
)

// node is a slot in the chain. value and next are only read or written
// while mu is held. valid flips to false exactly once, when the node is
// spliced out, and next is cleared at the same moment so a stale holder
// cannot keep walking past the removal point
type node struct {
	value *Event
	next  *node
	mu    sync.Mutex
	valid atomic.Bool
}

func newNode(value *Event, next *node) *node {
	n := &node{value: value, next: next}
	n.valid.Store(true)
	return n
}

// invalidate must be called with mu held
func (n *node) invalidate() {
	n.next = nil
	n.valid.Store(false)
}
