package models

import (
	"time"

	"github.com/google/uuid"
)

// TeleopSession represents one teleoperation session, spanning a single
// stream connection from open to close. EndTime is nil while active.
type TeleopSession struct {
	ID         uuid.UUID              `json:"id"`
	RobotID    string                 `json:"robotId"`
	StartTime  time.Time              `json:"startTime"`
	EndTime    *time.Time             `json:"endTime,omitempty"`
	FPS        int                    `json:"fps"`
	FrameCount int64                  `json:"frameCount"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Active reports whether the session is still open
func (s *TeleopSession) Active() bool {
	return s.EndTime == nil
}
