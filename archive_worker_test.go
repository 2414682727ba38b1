package eventchain_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/kode4food/eventchain"
)

type recordingArchiver struct {
	mu      sync.Mutex
	batches map[eventchain.EventType][][]eventchain.Event
}

func newRecordingArchiver() *recordingArchiver {
	return &recordingArchiver{
		batches: map[eventchain.EventType][][]eventchain.Event{},
	}
}

func (a *recordingArchiver) Archive(
	_ context.Context, typ eventchain.EventType, evs []eventchain.Event,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches[typ] = append(a.batches[typ], evs)
	return nil
}

func (a *recordingArchiver) count(typ eventchain.EventType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, b := range a.batches[typ] {
		total += len(b)
	}
	return total
}

func newDroppedCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: "dropped"})
}

func TestArchiveWorkerStopFlushesQueue(t *testing.T) {
	archiver := newRecordingArchiver()
	cfg := eventchain.DefaultArchiveConfig()
	cfg.Archiver = archiver
	cfg.WorkerCount = 3

	aw := eventchain.NewArchiveWorker(cfg, zap.NewNop(), newDroppedCounter())
	for i := range int64(20) {
		assert.True(t, aw.Enqueue(EventDelete, []eventchain.Event{
			{Type: EventDelete, Timestamp: i},
		}))
	}
	aw.Stop()

	assert.Equal(t, 20, archiver.count(EventDelete))
}

func TestArchiveWorkerSaveTimesOut(t *testing.T) {
	errs := make(chan error, 1)
	cfg := eventchain.DefaultArchiveConfig()
	cfg.WorkerCount = 1
	cfg.SaveTimeout = 0
	cfg.Archiver = eventchain.ArchiverFunc(
		func(ctx context.Context, _ eventchain.EventType,
			_ []eventchain.Event,
		) error {
			<-ctx.Done()
			errs <- ctx.Err()
			return ctx.Err()
		},
	)

	aw := eventchain.NewArchiveWorker(cfg, nil, nil)
	assert.True(t, aw.Enqueue(EventDelete, []eventchain.Event{
		{Type: EventDelete, Timestamp: 1},
	}))
	aw.Stop()

	assert.True(t, errors.Is(<-errs, context.DeadlineExceeded))
}

func TestArchiveWorkerQueueFull(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	cfg := eventchain.DefaultArchiveConfig()
	cfg.WorkerCount = 1
	cfg.MaxQueueSize = 1
	cfg.Archiver = eventchain.ArchiverFunc(
		func(context.Context, eventchain.EventType, []eventchain.Event) error {
			once.Do(func() { close(started) })
			<-release
			return nil
		},
	)

	dropped := newDroppedCounter()
	aw := eventchain.NewArchiveWorker(cfg, zap.NewNop(), dropped)
	batch := []eventchain.Event{{Type: EventDelete, Timestamp: 1}}

	assert.True(t, aw.Enqueue(EventDelete, batch))
	<-started
	assert.True(t, aw.Enqueue(EventDelete, batch))
	assert.False(t, aw.Enqueue(EventDelete, batch))
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped))

	close(release)
	aw.Stop()
}

func TestArchiveWorkerRejectsAfterStop(t *testing.T) {
	archiver := newRecordingArchiver()
	cfg := eventchain.DefaultArchiveConfig()
	cfg.Archiver = archiver

	dropped := newDroppedCounter()
	aw := eventchain.NewArchiveWorker(cfg, zap.NewNop(), dropped)
	aw.Stop()

	assert.False(t, aw.Enqueue(EventDelete, []eventchain.Event{
		{Type: EventDelete, Timestamp: 1},
	}))
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped))
	assert.Equal(t, 0, archiver.count(EventDelete))
}
