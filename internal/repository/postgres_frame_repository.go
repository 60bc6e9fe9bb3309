package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// PostgresFrameRepository implements FrameRepository using PostgreSQL
type PostgresFrameRepository struct {
	db *sql.DB
}

// NewPostgresFrameRepository creates a new PostgreSQL frame repository
func NewPostgresFrameRepository(db *sql.DB) *PostgresFrameRepository {
	return &PostgresFrameRepository{db: db}
}

// SaveBatch commits a batch of frames plus the session frame_count bump in one
// transaction. Insert order follows slice order so frames commit in receipt
// order within the batch.
func (r *PostgresFrameRepository) SaveBatch(ctx context.Context, frames []*models.TeleopFrame) error {
	if len(frames) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is safe to call even after Commit
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO teleop_frames (session_id, robot_id, frame_index, recorded_at, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, frame := range frames {
		dataJSON, err := json.Marshal(frame.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal frame data: %w", err)
		}

		err = stmt.QueryRowContext(ctx,
			frame.SessionID, frame.RobotID, frame.FrameIndex,
			frame.RecordedAt, dataJSON,
		).Scan(&frame.ID)
		if err != nil {
			return fmt.Errorf("failed to insert frame in batch: %w", err)
		}
	}

	// All frames in a batch share one session
	sessionID := frames[0].SessionID
	_, err = tx.ExecContext(ctx,
		`UPDATE teleop_sessions SET frame_count = frame_count + $2 WHERE id = $1`,
		sessionID, len(frames),
	)
	if err != nil {
		return fmt.Errorf("failed to update session frame count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountBySession returns the number of committed frames for a session
func (r *PostgresFrameRepository) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teleop_frames WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}

// GetBySession retrieves committed frames ordered by frame_index ascending
func (r *PostgresFrameRepository) GetBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.TeleopFrame, error) {
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT id, session_id, robot_id, frame_index, recorded_at, data
		FROM teleop_frames
		WHERE session_id = $1
		ORDER BY frame_index ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames by session: %w", err)
	}
	defer rows.Close()

	var frames []*models.TeleopFrame
	for rows.Next() {
		frame := &models.TeleopFrame{}
		var dataJSON []byte

		err := rows.Scan(
			&frame.ID, &frame.SessionID, &frame.RobotID,
			&frame.FrameIndex, &frame.RecordedAt, &dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame row: %w", err)
		}

		if err := json.Unmarshal(dataJSON, &frame.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal frame data: %w", err)
		}

		frames = append(frames, frame)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frame rows: %w", err)
	}

	return frames, nil
}
