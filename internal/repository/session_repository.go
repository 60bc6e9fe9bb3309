package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

var (
	// ErrSessionNotFound is returned when a session is not found
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRepository defines the interface for teleop session data access
type SessionRepository interface {
	// Create stores a new session opened by a stream connection
	Create(ctx context.Context, session *models.TeleopSession) error

	// Close sets the end time of a session
	Close(ctx context.Context, id uuid.UUID, endTime time.Time) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id uuid.UUID) (*models.TeleopSession, error)

	// List retrieves sessions ordered by start time descending, optionally
	// filtered by robot ID (empty string means all robots)
	List(ctx context.Context, robotID string, limit, offset int) ([]*models.TeleopSession, error)
}
