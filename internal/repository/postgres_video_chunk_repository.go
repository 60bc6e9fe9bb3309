package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nsmlab/teleop-ingest/internal/models"
)

// PostgresVideoChunkRepository implements VideoChunkRepository using PostgreSQL
type PostgresVideoChunkRepository struct {
	db *sql.DB
}

// NewPostgresVideoChunkRepository creates a new PostgreSQL video chunk repository
func NewPostgresVideoChunkRepository(db *sql.DB) *PostgresVideoChunkRepository {
	return &PostgresVideoChunkRepository{db: db}
}

// Create records one chunk metadata row
func (r *PostgresVideoChunkRepository) Create(ctx context.Context, chunk *models.VideoChunk) error {
	query := `
		INSERT INTO video_chunks (session_id, robot_id, camera_key, file_path, start_timestamp, end_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, query,
		chunk.SessionID, chunk.RobotID, chunk.CameraKey,
		chunk.FilePath, chunk.StartTimestamp, chunk.EndTimestamp, chunk.CreatedAt,
	).Scan(&chunk.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrChunkExists
		}
		return fmt.Errorf("failed to insert video chunk: %w", err)
	}

	return nil
}

// ExistsByPath reports whether a chunk with the given file path is recorded
func (r *PostgresVideoChunkRepository) ExistsByPath(ctx context.Context, filePath string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM video_chunks WHERE file_path = $1)`, filePath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk existence: %w", err)
	}
	return exists, nil
}

// HasOverlap reports whether any recorded chunk for (session, camera) has a
// time range intersecting [start, end). Shared boundaries are contiguous, not
// overlapping.
func (r *PostgresVideoChunkRepository) HasOverlap(ctx context.Context, sessionID uuid.UUID, cameraKey string, start, end float64) (bool, error) {
	var overlap bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM video_chunks
			WHERE session_id = $1 AND camera_key = $2
			  AND start_timestamp < $4 AND $3 < end_timestamp
		)`, sessionID, cameraKey, start, end,
	).Scan(&overlap)
	if err != nil {
		return false, fmt.Errorf("failed to check chunk overlap: %w", err)
	}
	return overlap, nil
}

// ListBySession retrieves chunks for a session ordered by camera key and start
func (r *PostgresVideoChunkRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.VideoChunk, error) {
	query := `
		SELECT id, session_id, robot_id, camera_key, file_path, start_timestamp, end_timestamp, created_at
		FROM video_chunks
		WHERE session_id = $1
		ORDER BY camera_key, start_timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list video chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.VideoChunk
	for rows.Next() {
		chunk := &models.VideoChunk{}
		err := rows.Scan(
			&chunk.ID, &chunk.SessionID, &chunk.RobotID, &chunk.CameraKey,
			&chunk.FilePath, &chunk.StartTimestamp, &chunk.EndTimestamp, &chunk.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video chunk row: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating video chunk rows: %w", err)
	}

	return chunks, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
