// Package models contains data models for the teleop ingestion service.
package models

import "time"

// Robot status values
const (
	RobotStatusOnline  = "online"
	RobotStatusOffline = "offline"
	RobotStatusError   = "error"
)

// Robot represents a registered robot. Robots are created on first contact
// and never hard-deleted; status is the only lifecycle signal.
type Robot struct {
	ID            string                 `json:"id"`
	Name          *string                `json:"name,omitempty"`
	RobotType     *string                `json:"robotType,omitempty"`
	Status        string                 `json:"status"`
	LastHeartbeat *time.Time             `json:"lastHeartbeat,omitempty"`
	IPAddress     *string                `json:"ipAddress,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}
