package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

const defaultMaxQueuedBatches = 8

// BufferConfig configures a per-session frame buffer
type BufferConfig struct {
	SessionID uuid.UUID
	RobotID   string

	// Size is the frame count that triggers a flush
	Size int

	// FlushInterval flushes a partially filled buffer at least this often,
	// bounding worst-case durability latency. Zero disables timed flushes.
	FlushInterval time.Duration

	// MaxQueuedBatches bounds batches waiting on an in-flight flush. When the
	// queue is full the oldest queued batch is dropped and counted as loss.
	MaxQueuedBatches int
}

// Metrics is a snapshot of one buffer's counters
type Metrics struct {
	SessionID       uuid.UUID `json:"sessionId"`
	RobotID         string    `json:"robotId"`
	TotalFrames     int64     `json:"totalFrames"`
	CommittedFrames int64     `json:"committedFrames"`
	PendingFrames   int       `json:"pendingFrames"`
	FlushCount      int64     `json:"flushCount"`
	DroppedFrames   int64     `json:"droppedFrames"`
}

// Buffer accumulates frames for one session and hands filled batches to the
// Writer. The buffer is owned by a single stream handler; Append is never
// called concurrently. A flush swaps in a fresh slice immediately, so new
// frames are never blocked by an in-flight write. One worker goroutine drains
// the batch queue, which serializes flushes per session and preserves flush
// order.
type Buffer struct {
	cfg    BufferConfig
	writer *Writer
	logger *slog.Logger

	mu      sync.Mutex
	pending []*models.TeleopFrame

	total     int64
	committed int64
	flushes   int64
	dropped   int64

	batches  chan []*models.TeleopFrame
	done     chan struct{}
	ticker   *time.Ticker
	tickQuit chan struct{}
	tickDone chan struct{}
	stopped  bool
}

// NewBuffer creates a buffer and starts its flush worker
func NewBuffer(cfg BufferConfig, writer *Writer, logger *slog.Logger) *Buffer {
	if cfg.MaxQueuedBatches <= 0 {
		cfg.MaxQueuedBatches = defaultMaxQueuedBatches
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Buffer{
		cfg:     cfg,
		writer:  writer,
		logger:  logger,
		pending: make([]*models.TeleopFrame, 0, cfg.Size),
		batches: make(chan []*models.TeleopFrame, cfg.MaxQueuedBatches),
		done:    make(chan struct{}),
	}

	go b.flushLoop()

	if cfg.FlushInterval > 0 {
		b.ticker = time.NewTicker(cfg.FlushInterval)
		b.tickQuit = make(chan struct{})
		b.tickDone = make(chan struct{})
		go b.tickLoop()
	}

	return b
}

// Append adds a frame in arrival order and enqueues a flush when the count
// threshold is reached
func (b *Buffer) Append(frame *models.TeleopFrame) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.pending = append(b.pending, frame)
	b.total++
	var batch []*models.TeleopFrame
	if len(b.pending) >= b.cfg.Size {
		batch = b.takeLocked()
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch)
	}
}

// Flush enqueues whatever is currently buffered, if anything
func (b *Buffer) Flush() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	batch := b.takeLocked()
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch)
	}
}

// Close flushes remaining frames, stops the worker and waits for all queued
// batches to reach terminal state (committed or dropped). Safe to call once.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	// Stop timed flushes first so nothing races the channel close below
	if b.ticker != nil {
		b.ticker.Stop()
		close(b.tickQuit)
		<-b.tickDone
	}

	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch)
	}
	close(b.batches)
	<-b.done
}

// Metrics returns a snapshot of the buffer counters
func (b *Buffer) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{
		SessionID:       b.cfg.SessionID,
		RobotID:         b.cfg.RobotID,
		TotalFrames:     b.total,
		CommittedFrames: b.committed,
		PendingFrames:   len(b.pending),
		FlushCount:      b.flushes,
		DroppedFrames:   b.dropped,
	}
}

// takeLocked swaps out the pending slice. Caller holds b.mu.
func (b *Buffer) takeLocked() []*models.TeleopFrame {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = make([]*models.TeleopFrame, 0, b.cfg.Size)
	return batch
}

// enqueue hands a batch to the flush worker. When the queue is full the oldest
// queued batch is dropped and counted, so the producer is never blocked
// indefinitely by a slow store.
func (b *Buffer) enqueue(batch []*models.TeleopFrame) {
	for {
		select {
		case b.batches <- batch:
			return
		default:
		}

		select {
		case stale, ok := <-b.batches:
			if !ok {
				return
			}
			b.mu.Lock()
			b.dropped += int64(len(stale))
			b.mu.Unlock()
			b.logger.Warn("flush queue full, dropping oldest batch",
				"session_id", b.cfg.SessionID,
				"dropped_frames", len(stale),
			)
		case b.batches <- batch:
			return
		}
	}
}

// flushLoop drains the batch queue. In-flight flushes run to completion even
// after the owning connection closes, so the context is independent of it.
func (b *Buffer) flushLoop() {
	defer close(b.done)
	for batch := range b.batches {
		err := b.writer.Commit(context.Background(), batch)

		b.mu.Lock()
		b.flushes++
		if err != nil {
			b.dropped += int64(len(batch))
		} else {
			b.committed += int64(len(batch))
		}
		b.mu.Unlock()

		if err != nil {
			b.logger.Error("batch lost after retry exhaustion",
				"session_id", b.cfg.SessionID,
				"robot_id", b.cfg.RobotID,
				"lost_frames", len(batch),
				"error", err,
			)
		}
	}
}

// tickLoop flushes partial buffers on the configured interval
func (b *Buffer) tickLoop() {
	defer close(b.tickDone)
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.tickQuit:
			return
		}
	}
}
