package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// PostgresSessionRepository implements SessionRepository using PostgreSQL
type PostgresSessionRepository struct {
	db *sql.DB
}

// NewPostgresSessionRepository creates a new PostgreSQL session repository
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

// Create stores a new session
func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.TeleopSession) error {
	query := `
		INSERT INTO teleop_sessions (id, robot_id, start_time, end_time, fps, frame_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}

	metadataJSON, err := marshalMetadata(session.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		session.ID, session.RobotID, session.StartTime, session.EndTime,
		session.FPS, session.FrameCount, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Close sets the end time of a session
func (r *PostgresSessionRepository) Close(ctx context.Context, id uuid.UUID, endTime time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE teleop_sessions SET end_time = $2 WHERE id = $1`, id, endTime)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// Get retrieves a session by ID
func (r *PostgresSessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.TeleopSession, error) {
	query := `
		SELECT id, robot_id, start_time, end_time, fps, frame_count, metadata
		FROM teleop_sessions
		WHERE id = $1
	`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// List retrieves sessions ordered by start time descending
func (r *PostgresSessionRepository) List(ctx context.Context, robotID string, limit, offset int) ([]*models.TeleopSession, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, robot_id, start_time, end_time, fps, frame_count, metadata
		FROM teleop_sessions
		WHERE ($1 = '' OR robot_id = $1)
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, robotID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.TeleopSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

func scanSession(row rowScanner) (*models.TeleopSession, error) {
	session := &models.TeleopSession{}
	var endTime sql.NullTime
	var metadataJSON []byte

	err := row.Scan(
		&session.ID, &session.RobotID, &session.StartTime, &endTime,
		&session.FPS, &session.FrameCount, &metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		t := endTime.Time
		session.EndTime = &t
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}

	return session, nil
}
