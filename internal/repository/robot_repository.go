// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

var (
	// ErrRobotNotFound is returned when a robot is not found
	ErrRobotNotFound = errors.New("robot not found")
)

// RobotRepository defines the interface for robot registry data access
type RobotRepository interface {
	// Upsert creates the robot on first contact or refreshes status and
	// heartbeat on subsequent connections
	Upsert(ctx context.Context, robot *models.Robot) error

	// SetStatus updates the robot status (online / offline / error)
	SetStatus(ctx context.Context, robotID, status string) error

	// Heartbeat records the last heartbeat time for a robot
	Heartbeat(ctx context.Context, robotID string, at time.Time) error

	// Get retrieves a robot by ID
	Get(ctx context.Context, robotID string) (*models.Robot, error)

	// List retrieves all registered robots
	List(ctx context.Context) ([]*models.Robot, error)
}
