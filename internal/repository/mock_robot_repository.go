package repository

import (
	"context"
	"time"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// MockRobotRepository is a mock implementation of RobotRepository for testing
type MockRobotRepository struct {
	UpsertFunc    func(ctx context.Context, robot *models.Robot) error
	SetStatusFunc func(ctx context.Context, robotID, status string) error
	HeartbeatFunc func(ctx context.Context, robotID string, at time.Time) error
	GetFunc       func(ctx context.Context, robotID string) (*models.Robot, error)
	ListFunc      func(ctx context.Context) ([]*models.Robot, error)
}

// NewMockRobotRepository creates a new mock robot repository with default implementations
func NewMockRobotRepository() *MockRobotRepository {
	return &MockRobotRepository{
		UpsertFunc: func(_ context.Context, _ *models.Robot) error {
			return nil
		},
		SetStatusFunc: func(_ context.Context, _, _ string) error {
			return nil
		},
		HeartbeatFunc: func(_ context.Context, _ string, _ time.Time) error {
			return nil
		},
		GetFunc: func(_ context.Context, _ string) (*models.Robot, error) {
			return nil, ErrRobotNotFound
		},
		ListFunc: func(_ context.Context) ([]*models.Robot, error) {
			return []*models.Robot{}, nil
		},
	}
}

// Upsert implements RobotRepository.Upsert
func (m *MockRobotRepository) Upsert(ctx context.Context, robot *models.Robot) error {
	return m.UpsertFunc(ctx, robot)
}

// SetStatus implements RobotRepository.SetStatus
func (m *MockRobotRepository) SetStatus(ctx context.Context, robotID, status string) error {
	return m.SetStatusFunc(ctx, robotID, status)
}

// Heartbeat implements RobotRepository.Heartbeat
func (m *MockRobotRepository) Heartbeat(ctx context.Context, robotID string, at time.Time) error {
	return m.HeartbeatFunc(ctx, robotID, at)
}

// Get implements RobotRepository.Get
func (m *MockRobotRepository) Get(ctx context.Context, robotID string) (*models.Robot, error) {
	return m.GetFunc(ctx, robotID)
}

// List implements RobotRepository.List
func (m *MockRobotRepository) List(ctx context.Context) ([]*models.Robot, error) {
	return m.ListFunc(ctx)
}
