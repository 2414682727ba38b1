package eventchain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"github.com/kode4food/eventchain"
)

func TestQuerySingleEvents(t *testing.T) {
	store := newTestStore(t)
	insertAll(t, store,
		eventchain.Event{Type: EventTest, Timestamp: 0},
		eventchain.Event{Type: EventTest, Timestamp: 5000},
		eventchain.Event{Type: EventTest, Timestamp: 15000},
		eventchain.Event{Type: EventQuery, Timestamp: 10000},
		eventchain.Event{Type: EventQuery, Timestamp: 20000},
	)

	assert.Equal(t,
		[]int64{10000}, queryTimestamps(t, store, EventQuery, 10000, 16000),
	)
}

func TestQueryBoundsAreInclusive(t *testing.T) {
	store := newTestStore(t)
	for ts := int64(1); ts <= 10; ts++ {
		insertAll(t, store, eventchain.Event{Type: EventQuery, Timestamp: ts})
	}

	assert.Equal(t,
		[]int64{3, 4, 5}, queryTimestamps(t, store, EventQuery, 3, 5),
	)
	assert.Equal(t,
		[]int64{7}, queryTimestamps(t, store, EventQuery, 7, 7),
	)
	assert.Empty(t, queryTimestamps(t, store, EventQuery, 11, 20))
	assert.Empty(t, queryTimestamps(t, store, EventTest, 1, 10))
}

func setupRangeProducers(
	t *testing.T, queryType eventchain.EventType,
) *eventchain.Store {
	t.Helper()
	store := newTestStore(t)

	var g errgroup.Group
	g.Go(rangeProducer(store, EventTest, 5000))
	g.Go(rangeProducer(store, EventTest, 0))
	g.Go(rangeProducer(store, EventTest, 15000))
	g.Go(rangeProducer(store, queryType, 10000))
	g.Go(rangeProducer(store, queryType, 20000))
	assert.NoError(t, g.Wait())

	assert.True(t, store.IsSorted())
	assert.Equal(t, 25000, store.Count())
	assert.Equal(t, store.Length(), store.Count())
	return store
}

func TestQueryAfterConcurrentInsert(t *testing.T) {
	store := setupRangeProducers(t, EventQuery)

	res := queryTimestamps(t, store, EventQuery, 10000, 16000)
	assert.Len(t, res, 5000)
	assert.IsNonDecreasing(t, res)
	assert.Equal(t, int64(10000), res[0])
	assert.Equal(t, int64(14999), res[len(res)-1])
}

func TestQueryNoResultAfterConcurrentInsert(t *testing.T) {
	store := setupRangeProducers(t, EventTest)

	cur, err := store.Query(EventQuery, 10000, 16000)
	assert.NoError(t, err)
	assert.Equal(t, 0, cur.Len())
	assert.False(t, cur.MoveNext())
	_, err = cur.Current()
	assert.ErrorIs(t, err, eventchain.ErrInvalidState)
}

func TestQueryDuringInsert(t *testing.T) {
	store := newTestStore(t)

	var g errgroup.Group
	g.Go(rangeProducer(store, EventQuery, 5000))
	g.Go(rangeProducer(store, EventQuery, 0))
	g.Go(rangeProducer(store, EventTest, 15000))
	g.Go(rangeProducer(store, EventTest, 10000))
	g.Go(rangeProducer(store, EventQuery, 20000))

	var res []int64
	g.Go(func() error {
		cur, err := store.Query(EventQuery, 0, 20000)
		if err != nil {
			return err
		}
		defer func() { _ = cur.Close() }()
		for ev := range cur.Events() {
			res = append(res, ev.Timestamp)
		}
		return nil
	})
	assert.NoError(t, g.Wait())

	assert.IsNonDecreasing(t, res)
	assert.LessOrEqual(t, len(res), 10001)
	assert.Equal(t, 25000, store.Length())
	assert.Equal(t, 25000, store.Count())
	assert.True(t, store.IsSorted())

	full := queryTimestamps(t, store, EventQuery, 0, 20000)
	assert.Len(t, full, 10001)
}
