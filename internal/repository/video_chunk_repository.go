package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

var (
	// ErrChunkExists is returned when a chunk with the same file path is
	// already recorded. Callers treat this as successful duplicate delivery.
	ErrChunkExists = errors.New("video chunk already recorded")
)

// VideoChunkRepository defines the interface for video chunk metadata access
type VideoChunkRepository interface {
	// Create records one chunk metadata row. The file path is unique; a
	// duplicate path returns ErrChunkExists.
	Create(ctx context.Context, chunk *models.VideoChunk) error

	// ExistsByPath reports whether a chunk with the given file path is recorded
	ExistsByPath(ctx context.Context, filePath string) (bool, error)

	// HasOverlap reports whether any recorded chunk for (session, camera) has a
	// time range intersecting [start, end)
	HasOverlap(ctx context.Context, sessionID uuid.UUID, cameraKey string, start, end float64) (bool, error)

	// ListBySession retrieves chunks for a session ordered by camera key and
	// start timestamp
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.VideoChunk, error)
}
