// Package telemetry provides the per-session frame buffer and batch writer
// that decouple producer cadence from storage write cadence.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/repository"
)

// Writer commits frame batches to durable storage with bounded retries.
// A batch is all-or-nothing: the frames and the session frame_count update
// commit in one transaction or not at all.
type Writer struct {
	frames  repository.FrameRepository
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// NewWriter creates a batch writer. retries bounds additional attempts after
// the first failure; backoff is the base delay, scaled linearly per attempt.
func NewWriter(frames repository.FrameRepository, retries int, backoff time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		frames:  frames,
		retries: retries,
		backoff: backoff,
		logger:  logger,
	}
}

// Commit durably writes one batch, retrying the identical batch on failure.
// Exhausting retries returns the final error; the caller records the loss and
// keeps the session alive.
func (w *Writer) Commit(ctx context.Context, frames []*models.TeleopFrame) error {
	if len(frames) == 0 {
		return nil
	}

	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * w.backoff):
			case <-ctx.Done():
				return fmt.Errorf("batch write canceled: %w", ctx.Err())
			}
		}

		err = w.frames.SaveBatch(ctx, frames)
		if err == nil {
			return nil
		}

		w.logger.Warn("batch write failed",
			"session_id", frames[0].SessionID,
			"batch_size", len(frames),
			"attempt", attempt+1,
			"error", err,
		)
	}

	return fmt.Errorf("batch write failed after %d attempts: %w", w.retries+1, err)
}
