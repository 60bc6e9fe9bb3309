package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// MockVideoChunkRepository is a mock implementation of VideoChunkRepository for
// testing. The defaults keep an in-memory table keyed by file path, so path
// idempotency and overlap checks behave like the real store.
type MockVideoChunkRepository struct {
	CreateFunc        func(ctx context.Context, chunk *models.VideoChunk) error
	ExistsByPathFunc  func(ctx context.Context, filePath string) (bool, error)
	HasOverlapFunc    func(ctx context.Context, sessionID uuid.UUID, cameraKey string, start, end float64) (bool, error)
	ListBySessionFunc func(ctx context.Context, sessionID uuid.UUID) ([]*models.VideoChunk, error)

	mu     sync.Mutex
	chunks map[string]*models.VideoChunk
	nextID int64
}

// NewMockVideoChunkRepository creates a new mock video chunk repository with default implementations
func NewMockVideoChunkRepository() *MockVideoChunkRepository {
	m := &MockVideoChunkRepository{chunks: make(map[string]*models.VideoChunk)}
	m.CreateFunc = func(_ context.Context, chunk *models.VideoChunk) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.chunks[chunk.FilePath]; ok {
			return ErrChunkExists
		}
		m.nextID++
		chunk.ID = m.nextID
		stored := *chunk
		m.chunks[chunk.FilePath] = &stored
		return nil
	}
	m.ExistsByPathFunc = func(_ context.Context, filePath string) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, ok := m.chunks[filePath]
		return ok, nil
	}
	m.HasOverlapFunc = func(_ context.Context, sessionID uuid.UUID, cameraKey string, start, end float64) (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		probe := &models.VideoChunk{StartTimestamp: start, EndTimestamp: end}
		for _, c := range m.chunks {
			if c.SessionID == sessionID && c.CameraKey == cameraKey && c.Overlaps(probe) {
				return true, nil
			}
		}
		return false, nil
	}
	m.ListBySessionFunc = func(_ context.Context, sessionID uuid.UUID) ([]*models.VideoChunk, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		var result []*models.VideoChunk
		for _, c := range m.chunks {
			if c.SessionID == sessionID {
				result = append(result, c)
			}
		}
		return result, nil
	}
	return m
}

// Create implements VideoChunkRepository.Create
func (m *MockVideoChunkRepository) Create(ctx context.Context, chunk *models.VideoChunk) error {
	return m.CreateFunc(ctx, chunk)
}

// ExistsByPath implements VideoChunkRepository.ExistsByPath
func (m *MockVideoChunkRepository) ExistsByPath(ctx context.Context, filePath string) (bool, error) {
	return m.ExistsByPathFunc(ctx, filePath)
}

// HasOverlap implements VideoChunkRepository.HasOverlap
func (m *MockVideoChunkRepository) HasOverlap(ctx context.Context, sessionID uuid.UUID, cameraKey string, start, end float64) (bool, error) {
	return m.HasOverlapFunc(ctx, sessionID, cameraKey, start, end)
}

// ListBySession implements VideoChunkRepository.ListBySession
func (m *MockVideoChunkRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.VideoChunk, error) {
	return m.ListBySessionFunc(ctx, sessionID)
}
