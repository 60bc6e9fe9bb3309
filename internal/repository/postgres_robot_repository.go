package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// PostgresRobotRepository implements RobotRepository using PostgreSQL
type PostgresRobotRepository struct {
	db *sql.DB
}

// NewPostgresRobotRepository creates a new PostgreSQL robot repository
func NewPostgresRobotRepository(db *sql.DB) *PostgresRobotRepository {
	return &PostgresRobotRepository{db: db}
}

// Upsert creates the robot on first contact or refreshes status, heartbeat and
// connection metadata on subsequent connections
func (r *PostgresRobotRepository) Upsert(ctx context.Context, robot *models.Robot) error {
	query := `
		INSERT INTO robots (id, name, robot_type, status, last_heartbeat, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			last_heartbeat = EXCLUDED.last_heartbeat,
			ip_address = COALESCE(EXCLUDED.ip_address, robots.ip_address),
			name = COALESCE(EXCLUDED.name, robots.name),
			robot_type = COALESCE(EXCLUDED.robot_type, robots.robot_type)
	`

	metadataJSON, err := marshalMetadata(robot.Metadata)
	if err != nil {
		return err
	}

	if robot.CreatedAt.IsZero() {
		robot.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		robot.ID, robot.Name, robot.RobotType, robot.Status,
		robot.LastHeartbeat, robot.IPAddress, metadataJSON, robot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert robot: %w", err)
	}

	return nil
}

// SetStatus updates the robot status
func (r *PostgresRobotRepository) SetStatus(ctx context.Context, robotID, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE robots SET status = $2 WHERE id = $1`, robotID, status)
	if err != nil {
		return fmt.Errorf("failed to update robot status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRobotNotFound
	}

	return nil
}

// Heartbeat records the last heartbeat time for a robot
func (r *PostgresRobotRepository) Heartbeat(ctx context.Context, robotID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE robots SET last_heartbeat = $2 WHERE id = $1`, robotID, at)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRobotNotFound
	}

	return nil
}

// Get retrieves a robot by ID
func (r *PostgresRobotRepository) Get(ctx context.Context, robotID string) (*models.Robot, error) {
	query := `
		SELECT id, name, robot_type, status, last_heartbeat, ip_address, metadata, created_at
		FROM robots
		WHERE id = $1
	`

	robot, err := scanRobot(r.db.QueryRowContext(ctx, query, robotID))
	if err == sql.ErrNoRows {
		return nil, ErrRobotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get robot: %w", err)
	}

	return robot, nil
}

// List retrieves all registered robots ordered by ID
func (r *PostgresRobotRepository) List(ctx context.Context) ([]*models.Robot, error) {
	query := `
		SELECT id, name, robot_type, status, last_heartbeat, ip_address, metadata, created_at
		FROM robots
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list robots: %w", err)
	}
	defer rows.Close()

	var robots []*models.Robot
	for rows.Next() {
		robot, err := scanRobot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan robot row: %w", err)
		}
		robots = append(robots, robot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating robot rows: %w", err)
	}

	return robots, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRobot(row rowScanner) (*models.Robot, error) {
	robot := &models.Robot{}
	var name, robotType, ipAddress sql.NullString
	var lastHeartbeat sql.NullTime
	var metadataJSON []byte

	err := row.Scan(
		&robot.ID, &name, &robotType, &robot.Status,
		&lastHeartbeat, &ipAddress, &metadataJSON, &robot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if name.Valid {
		robot.Name = &name.String
	}
	if robotType.Valid {
		robot.RobotType = &robotType.String
	}
	if ipAddress.Valid {
		robot.IPAddress = &ipAddress.String
	}
	if lastHeartbeat.Valid {
		t := lastHeartbeat.Time
		robot.LastHeartbeat = &t
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &robot.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal robot metadata: %w", err)
		}
	}

	return robot, nil
}

// marshalMetadata serializes a metadata map, returning nil for an empty map so
// the column stays NULL
func marshalMetadata(metadata map[string]interface{}) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}
