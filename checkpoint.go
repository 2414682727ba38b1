package eventchain

import (
	"slices"
	"sort"
	"sync"
)

type (
	// checkpointIndex is a sparse, ordered set of shortcuts into the chain.
	// Entries are keyed by the timestamp their node held when registered.
	// A live node's timestamp only ever moves down (displacement puts a
	// smaller event into the slot), so the key is an upper bound on the
	// node's current timestamp. The index never locks chain nodes, which
	// lets callers consult it while holding node locks
	checkpointIndex struct {
		mu      sync.RWMutex
		entries []checkpoint
		members map[*node]int64
		added   *recency[*node]
	}

	checkpoint struct {
		node *node
		key  int64
	}

	proposal int
)

const (
	proposalSkipped proposal = iota
	proposalAdded
	proposalReplaced
)

func newCheckpointIndex() *checkpointIndex {
	return &checkpointIndex{
		members: map[*node]int64{},
		added:   newRecency[*node](),
	}
}

// nearestBefore returns the checkpoint with the greatest key strictly
// below ts and its 1-based ordinal among checkpoints. A nil node with
// ordinal 0 means the caller should start from the head
func (c *checkpointIndex) nearestBefore(ts int64) (*node, int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].key >= ts
	})
	if idx == 0 {
		return nil, 0
	}
	return c.entries[idx-1].node, int64(idx)
}

// propose offers n, currently holding key, as the checkpoint for ordinal
// position pos. Positions already covered by the index are skipped. When
// the index is at limit, the least recently added checkpoint is evicted
func (c *checkpointIndex) propose(
	n *node, key int64, pos int64, limit int64,
) proposal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[n]; ok {
		return proposalSkipped
	}
	size := int64(len(c.entries))
	if pos <= size || limit <= 0 {
		return proposalSkipped
	}

	res := proposalAdded
	for int64(len(c.entries)) >= limit {
		oldest, ok := c.added.oldest()
		if !ok {
			break
		}
		c.removeLocked(oldest)
		res = proposalReplaced
	}
	c.insertLocked(n, key)
	return res
}

// retarget replaces old with replacement, keyed by the replacement's
// current timestamp. It is a no-op when old is not a checkpoint
func (c *checkpointIndex) retarget(old, replacement *node, key int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[old]; !ok {
		return
	}
	c.removeLocked(old)
	if _, ok := c.members[replacement]; ok {
		return
	}
	c.insertLocked(replacement, key)
}

// discard removes n from the index, reporting whether it was present
func (c *checkpointIndex) discard(n *node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[n]; !ok {
		return false
	}
	c.removeLocked(n)
	return true
}

func (c *checkpointIndex) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = c.entries[:0]
	clear(c.members)
	c.added.reset()
}

func (c *checkpointIndex) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *checkpointIndex) insertLocked(n *node, key int64) {
	idx := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].key > key
	})
	c.entries = slices.Insert(c.entries, idx, checkpoint{node: n, key: key})
	c.members[n] = key
	c.added.add(n)
}

func (c *checkpointIndex) removeLocked(n *node) {
	key, ok := c.members[n]
	if !ok {
		return
	}
	idx := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].key >= key
	})
	for ; idx < len(c.entries) && c.entries[idx].key == key; idx++ {
		if c.entries[idx].node == n {
			c.entries = slices.Delete(c.entries, idx, idx+1)
			break
		}
	}
	delete(c.members, n)
	c.added.remove(n)
}
