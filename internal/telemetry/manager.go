package telemetry

import (
	"sync"

	"github.com/google/uuid"
)

// Manager tracks the live buffers of all active sessions so ingestion metrics
// can be aggregated across robots
type Manager struct {
	mu      sync.Mutex
	buffers map[uuid.UUID]*Buffer
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{buffers: make(map[uuid.UUID]*Buffer)}
}

// Register adds a session's buffer
func (m *Manager) Register(sessionID uuid.UUID, b *Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[sessionID] = b
}

// Unregister removes a session's buffer after close
func (m *Manager) Unregister(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buffers, sessionID)
}

// AllMetrics returns a metrics snapshot for every active buffer
func (m *Manager) AllMetrics() []Metrics {
	m.mu.Lock()
	buffers := make([]*Buffer, 0, len(m.buffers))
	for _, b := range m.buffers {
		buffers = append(buffers, b)
	}
	m.mu.Unlock()

	metrics := make([]Metrics, 0, len(buffers))
	for _, b := range buffers {
		metrics = append(metrics, b.Metrics())
	}
	return metrics
}

// ActiveCount returns the number of registered buffers
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buffers)
}
