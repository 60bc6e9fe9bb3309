package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() *FrameMessage {
	return &FrameMessage{
		FrameIndex: 0,
		Timestamp:  1700000000.5,
		Observation: &Observation{
			JointPositions:  []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
			JointVelocities: []float64{0, 0, 0, 0, 0, 0},
			Gripper:         0.8,
		},
		Action: &Action{
			JointPositions: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.7},
			Gripper:        1.0,
		},
	}
}

func TestFrameMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FrameMessage)
		wantErr error
	}{
		{
			name:    "valid frame",
			mutate:  func(*FrameMessage) {},
			wantErr: nil,
		},
		{
			name:    "negative frame index",
			mutate:  func(m *FrameMessage) { m.FrameIndex = -1 },
			wantErr: ErrNegativeFrameIndex,
		},
		{
			name:    "zero timestamp",
			mutate:  func(m *FrameMessage) { m.Timestamp = 0 },
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "missing observation",
			mutate:  func(m *FrameMessage) { m.Observation = nil },
			wantErr: ErrMissingObservation,
		},
		{
			name:    "missing action",
			mutate:  func(m *FrameMessage) { m.Action = nil },
			wantErr: ErrMissingAction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(m)

			err := m.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestFrameMessage_DecodeAndValidate(t *testing.T) {
	raw := `{
		"frame_index": 42,
		"timestamp": 1700000000.25,
		"observation": {"joint_positions": [0.1], "joint_velocities": [0.0], "gripper": 0.5},
		"action": {"joint_positions": [0.2], "gripper": 0.6}
	}`

	var m FrameMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.NoError(t, m.Validate())

	assert.Equal(t, int64(42), m.FrameIndex)
	assert.Equal(t, 0.5, m.Observation.Gripper)
	assert.Equal(t, []float64{0.2}, m.Action.JointPositions)
}

func TestFrameMessage_CaptureTime(t *testing.T) {
	m := validMessage()
	m.Timestamp = 1700000000.5

	ts := m.CaptureTime()
	assert.Equal(t, time.Unix(1700000000, 0).Add(500*time.Millisecond).UTC(), ts)
}

func TestFrameFromMessage(t *testing.T) {
	sessionID := uuid.New()
	m := validMessage()
	m.FrameIndex = 7

	frame := FrameFromMessage(sessionID, "robot_A", m)

	assert.Equal(t, sessionID, frame.SessionID)
	assert.Equal(t, "robot_A", frame.RobotID)
	assert.Equal(t, int64(7), frame.FrameIndex)
	assert.Equal(t, *m.Observation, frame.Data.Observation)
	assert.Equal(t, *m.Action, frame.Data.Action)
}

func TestVideoChunk_Overlaps(t *testing.T) {
	a := &VideoChunk{StartTimestamp: 0, EndTimestamp: 10}

	assert.True(t, a.Overlaps(&VideoChunk{StartTimestamp: 5, EndTimestamp: 15}))
	assert.True(t, a.Overlaps(&VideoChunk{StartTimestamp: 2, EndTimestamp: 8}))
	// Contiguous ranges share only a boundary and do not overlap
	assert.False(t, a.Overlaps(&VideoChunk{StartTimestamp: 10, EndTimestamp: 20}))
	// Gapped ranges are tolerated
	assert.False(t, a.Overlaps(&VideoChunk{StartTimestamp: 12, EndTimestamp: 20}))
}

func TestTeleopSession_Active(t *testing.T) {
	s := &TeleopSession{StartTime: time.Now()}
	assert.True(t, s.Active())

	end := time.Now()
	s.EndTime = &end
	assert.False(t, s.Active())
}
