package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Frame validation errors, reported to the producer without closing the stream
var (
	ErrNegativeFrameIndex = errors.New("frame_index must be a non-negative integer")
	ErrInvalidTimestamp   = errors.New("timestamp must be a positive number")
	ErrMissingObservation = errors.New("observation payload is required")
	ErrMissingAction      = errors.New("action payload is required")
)

// Observation is one sample of robot state
type Observation struct {
	JointPositions  []float64 `json:"joint_positions"`
	JointVelocities []float64 `json:"joint_velocities"`
	Gripper         float64   `json:"gripper"`
}

// Action is the commanded target paired with an observation
type Action struct {
	JointPositions []float64 `json:"joint_positions"`
	Gripper        float64   `json:"gripper"`
}

// FrameMessage is the wire format of one telemetry frame as sent by a robot.
// Observation and Action are pointers so that absence is distinguishable from
// a zero value at the validation boundary.
type FrameMessage struct {
	FrameIndex  int64        `json:"frame_index"`
	Timestamp   float64      `json:"timestamp"`
	Observation *Observation `json:"observation"`
	Action      *Action      `json:"action"`
}

// Validate checks the frame message against the frame schema
func (m *FrameMessage) Validate() error {
	if m.FrameIndex < 0 {
		return ErrNegativeFrameIndex
	}
	if m.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	if m.Observation == nil {
		return ErrMissingObservation
	}
	if m.Action == nil {
		return ErrMissingAction
	}
	return nil
}

// CaptureTime converts the producer-supplied unix timestamp to time.Time
func (m *FrameMessage) CaptureTime() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// FramePayload is the persisted frame document
type FramePayload struct {
	Observation Observation `json:"observation"`
	Action      Action      `json:"action"`
}

// TeleopFrame is one committed frame row. Immutable once committed.
type TeleopFrame struct {
	ID         int64        `json:"id"`
	SessionID  uuid.UUID    `json:"sessionId"`
	RobotID    string       `json:"robotId"`
	FrameIndex int64        `json:"frameIndex"`
	RecordedAt time.Time    `json:"recordedAt"`
	Data       FramePayload `json:"data"`
}

// FrameFromMessage builds a TeleopFrame from a validated wire message
func FrameFromMessage(sessionID uuid.UUID, robotID string, m *FrameMessage) *TeleopFrame {
	return &TeleopFrame{
		SessionID:  sessionID,
		RobotID:    robotID,
		FrameIndex: m.FrameIndex,
		RecordedAt: m.CaptureTime(),
		Data: FramePayload{
			Observation: *m.Observation,
			Action:      *m.Action,
		},
	}
}
