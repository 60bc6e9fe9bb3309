// Package registry tracks active teleoperation sessions per robot.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Entry describes one active session owned by a stream connection
type Entry struct {
	SessionID uuid.UUID
	RobotID   string
}

// Registry is a keyed table of active sessions. The mutex is held only for
// insert/lookup/remove, never across I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Entry
	byRobot  map[string]int
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]Entry),
		byRobot:  make(map[string]int),
	}
}

// Add registers an active session for a robot
func (r *Registry) Add(sessionID uuid.UUID, robotID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; ok {
		return
	}
	r.sessions[sessionID] = Entry{SessionID: sessionID, RobotID: robotID}
	r.byRobot[robotID]++
}

// Remove deregisters a session and reports whether the robot still has other
// active sessions
func (r *Registry) Remove(sessionID uuid.UUID) (robotStillActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	delete(r.sessions, sessionID)
	r.byRobot[entry.RobotID]--
	if r.byRobot[entry.RobotID] <= 0 {
		delete(r.byRobot, entry.RobotID)
		return false
	}
	return true
}

// Lookup returns the entry for a session, if active
func (r *Registry) Lookup(sessionID uuid.UUID) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sessionID]
	return entry, ok
}

// ActiveSessions returns a snapshot of all active session entries
func (r *Registry) ActiveSessions() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	return entries
}

// Count returns the number of active sessions
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RobotActive reports whether a robot has at least one active session
func (r *Registry) RobotActive(robotID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byRobot[robotID] > 0
}
