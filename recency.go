package eventchain

import "container/list"

// recency tracks keys in the order they were added so the oldest can be
// evicted first. It is not synchronized; the owner provides locking
type recency[K comparable] struct {
	elems map[K]*list.Element
	order *list.List
}

func newRecency[K comparable]() *recency[K] {
	return &recency[K]{
		elems: map[K]*list.Element{},
		order: list.New(),
	}
}

func (r *recency[K]) add(key K) {
	if _, ok := r.elems[key]; ok {
		return
	}
	r.elems[key] = r.order.PushFront(key)
}

func (r *recency[K]) remove(key K) {
	if elem, ok := r.elems[key]; ok {
		r.order.Remove(elem)
		delete(r.elems, key)
	}
}

func (r *recency[K]) oldest() (K, bool) {
	back := r.order.Back()
	if back == nil {
		var zero K
		return zero, false
	}
	return back.Value.(K), true
}

func (r *recency[K]) len() int {
	return r.order.Len()
}

func (r *recency[K]) reset() {
	clear(r.elems)
	r.order.Init()
}
