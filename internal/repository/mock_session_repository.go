package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// MockSessionRepository is a mock implementation of SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc func(ctx context.Context, session *models.TeleopSession) error
	CloseFunc  func(ctx context.Context, id uuid.UUID, endTime time.Time) error
	GetFunc    func(ctx context.Context, id uuid.UUID) (*models.TeleopSession, error)
	ListFunc   func(ctx context.Context, robotID string, limit, offset int) ([]*models.TeleopSession, error)
}

// NewMockSessionRepository creates a new mock session repository with default implementations
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		CreateFunc: func(_ context.Context, session *models.TeleopSession) error {
			if session.ID == uuid.Nil {
				session.ID = uuid.New()
			}
			return nil
		},
		CloseFunc: func(_ context.Context, _ uuid.UUID, _ time.Time) error {
			return nil
		},
		GetFunc: func(_ context.Context, _ uuid.UUID) (*models.TeleopSession, error) {
			return nil, ErrSessionNotFound
		},
		ListFunc: func(_ context.Context, _ string, _, _ int) ([]*models.TeleopSession, error) {
			return []*models.TeleopSession{}, nil
		},
	}
}

// Create implements SessionRepository.Create
func (m *MockSessionRepository) Create(ctx context.Context, session *models.TeleopSession) error {
	return m.CreateFunc(ctx, session)
}

// Close implements SessionRepository.Close
func (m *MockSessionRepository) Close(ctx context.Context, id uuid.UUID, endTime time.Time) error {
	return m.CloseFunc(ctx, id, endTime)
}

// Get implements SessionRepository.Get
func (m *MockSessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.TeleopSession, error) {
	return m.GetFunc(ctx, id)
}

// List implements SessionRepository.List
func (m *MockSessionRepository) List(ctx context.Context, robotID string, limit, offset int) ([]*models.TeleopSession, error) {
	return m.ListFunc(ctx, robotID, limit, offset)
}
