package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// MockFrameRepository is a mock implementation of FrameRepository for testing.
// The default SaveBatch records committed batches in Saved, guarded by a mutex
// so tests can drive it from concurrent flushes.
type MockFrameRepository struct {
	SaveBatchFunc      func(ctx context.Context, frames []*models.TeleopFrame) error
	CountBySessionFunc func(ctx context.Context, sessionID uuid.UUID) (int64, error)
	GetBySessionFunc   func(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.TeleopFrame, error)

	mu    sync.Mutex
	saved [][]*models.TeleopFrame
}

// NewMockFrameRepository creates a new mock frame repository with default implementations
func NewMockFrameRepository() *MockFrameRepository {
	m := &MockFrameRepository{}
	m.SaveBatchFunc = func(_ context.Context, frames []*models.TeleopFrame) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		batch := make([]*models.TeleopFrame, len(frames))
		copy(batch, frames)
		m.saved = append(m.saved, batch)
		return nil
	}
	m.CountBySessionFunc = func(_ context.Context, sessionID uuid.UUID) (int64, error) {
		var count int64
		for _, batch := range m.SavedBatches() {
			for _, f := range batch {
				if f.SessionID == sessionID {
					count++
				}
			}
		}
		return count, nil
	}
	m.GetBySessionFunc = func(_ context.Context, sessionID uuid.UUID, _ int) ([]*models.TeleopFrame, error) {
		var frames []*models.TeleopFrame
		for _, batch := range m.SavedBatches() {
			for _, f := range batch {
				if f.SessionID == sessionID {
					frames = append(frames, f)
				}
			}
		}
		return frames, nil
	}
	return m
}

// SavedBatches returns a snapshot of all batches committed so far
func (m *MockFrameRepository) SavedBatches() [][]*models.TeleopFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := make([][]*models.TeleopFrame, len(m.saved))
	copy(batches, m.saved)
	return batches
}

// SaveBatch implements FrameRepository.SaveBatch
func (m *MockFrameRepository) SaveBatch(ctx context.Context, frames []*models.TeleopFrame) error {
	return m.SaveBatchFunc(ctx, frames)
}

// CountBySession implements FrameRepository.CountBySession
func (m *MockFrameRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return m.CountBySessionFunc(ctx, sessionID)
}

// GetBySession implements FrameRepository.GetBySession
func (m *MockFrameRepository) GetBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.TeleopFrame, error) {
	return m.GetBySessionFunc(ctx, sessionID, limit)
}
