package eventchain

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type (
	// ArchiveWorker hands batches of removed events to an Archiver from a
	// bounded queue, so RemoveAll never waits on the Archiver
	ArchiveWorker struct {
		archiver Archiver
		logger   *zap.Logger
		dropped  prometheus.Counter
		ctx      context.Context
		queue    chan archiveRequest
		cancel   context.CancelFunc
		config   ArchiveConfig
		wg       sync.WaitGroup
		mu       sync.RWMutex
		stopped  bool
	}

	archiveRequest struct {
		typ    EventType
		events []Event
	}
)

func NewArchiveWorker(
	config ArchiveConfig, logger *zap.Logger, dropped prometheus.Counter,
) *ArchiveWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dropped == nil {
		dropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archive_dropped_total",
		})
	}
	ctx, cancel := context.WithCancel(context.Background())

	aw := &ArchiveWorker{
		archiver: config.Archiver,
		logger:   logger,
		dropped:  dropped,
		config:   config,
		queue:    make(chan archiveRequest, config.MaxQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < config.WorkerCount; i++ {
		aw.wg.Add(1)
		go aw.worker(i)
	}

	return aw
}

func (aw *ArchiveWorker) worker(id int) {
	defer aw.wg.Done()

	for {
		select {
		case <-aw.ctx.Done():
			aw.drain(id)
			return
		case req := <-aw.queue:
			aw.archive(id, req)
		}
	}
}

// drain archives whatever is still queued once the worker is stopped
func (aw *ArchiveWorker) drain(id int) {
	for {
		select {
		case req := <-aw.queue:
			aw.archive(id, req)
		default:
			return
		}
	}
}

// archive is bounded by SaveTimeout alone; stopping the worker must not
// abort a batch that was already accepted
func (aw *ArchiveWorker) archive(workerID int, req archiveRequest) {
	ctx, cancel := context.WithTimeout(
		context.Background(), aw.config.SaveTimeout,
	)
	defer cancel()

	start := time.Now()
	err := aw.archiver.Archive(ctx, req.typ, req.events)
	duration := time.Since(start)

	if err != nil {
		aw.logger.Error("Failed to archive removed events",
			zap.Int("worker_id", workerID),
			zap.String("type", string(req.typ)),
			zap.Int("count", len(req.events)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	aw.logger.Debug("Removed events archived",
		zap.Int("worker_id", workerID),
		zap.String("type", string(req.typ)),
		zap.Int("count", len(req.events)),
		zap.Duration("duration", duration),
	)
}

// Enqueue schedules a batch for archiving. It reports false, dropping the
// batch, when the queue is full or the worker has been stopped
func (aw *ArchiveWorker) Enqueue(typ EventType, events []Event) bool {
	aw.mu.RLock()
	defer aw.mu.RUnlock()

	if aw.stopped {
		aw.dropped.Inc()
		aw.logger.Warn("Archive worker stopped, dropping batch",
			zap.String("type", string(typ)),
			zap.Int("count", len(events)),
		)
		return false
	}

	req := archiveRequest{
		typ:    typ,
		events: events,
	}

	select {
	case aw.queue <- req:
		return true
	default:
		aw.dropped.Inc()
		aw.logger.Warn("Archive queue full, dropping batch",
			zap.String("type", string(typ)),
			zap.Int("count", len(events)),
			zap.Int("queue_size", len(aw.queue)),
		)
		return false
	}
}

// Stop cancels the workers and waits for them to flush the queue. Batches
// offered after Stop are dropped
func (aw *ArchiveWorker) Stop() {
	aw.mu.Lock()
	aw.stopped = true
	aw.mu.Unlock()

	aw.cancel()
	aw.wg.Wait()
}
