package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// FrameRepository defines the interface for teleop frame data access
type FrameRepository interface {
	// SaveBatch commits a batch of frames and the owning session's frame_count
	// bump in one all-or-nothing transaction. Frames are inserted in slice
	// order. All frames in a batch belong to the same session.
	SaveBatch(ctx context.Context, frames []*models.TeleopFrame) error

	// CountBySession returns the number of committed frames for a session
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)

	// GetBySession retrieves committed frames ordered by frame_index ascending
	GetBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.TeleopFrame, error)
}
