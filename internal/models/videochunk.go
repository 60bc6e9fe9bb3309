package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoChunk is the metadata row for one bounded-duration video segment of a
// single camera within a session. A row is only written after the blob it
// references is fully persisted, so FilePath always resolves to a readable file.
type VideoChunk struct {
	ID             int64     `json:"id"`
	SessionID      uuid.UUID `json:"sessionId"`
	RobotID        string    `json:"robotId"`
	CameraKey      string    `json:"cameraKey"`
	FilePath       string    `json:"filePath"`
	StartTimestamp float64   `json:"startTimestamp"`
	EndTimestamp   float64   `json:"endTimestamp"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Overlaps reports whether two chunks of the same camera stream have
// intersecting time ranges. Gaps are tolerated; overlaps are a correctness
// violation.
func (v *VideoChunk) Overlaps(other *VideoChunk) bool {
	return v.StartTimestamp < other.EndTimestamp && other.StartTimestamp < v.EndTimestamp
}
