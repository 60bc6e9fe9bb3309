package database

import (
	"context"
	"fmt"
)

// migrations are applied in order on startup. Statements are idempotent so a
// restart against an already-migrated database is a no-op.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS robots (
		id VARCHAR(100) PRIMARY KEY,
		name VARCHAR(200),
		robot_type VARCHAR(100),
		status VARCHAR(20) NOT NULL DEFAULT 'offline',
		last_heartbeat TIMESTAMPTZ,
		ip_address VARCHAR(64),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS teleop_sessions (
		id UUID PRIMARY KEY,
		robot_id VARCHAR(100) NOT NULL REFERENCES robots(id),
		start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		end_time TIMESTAMPTZ,
		fps INTEGER NOT NULL,
		frame_count BIGINT NOT NULL DEFAULT 0,
		metadata JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_teleop_sessions_robot_id ON teleop_sessions(robot_id)`,
	`CREATE INDEX IF NOT EXISTS idx_teleop_sessions_start_time ON teleop_sessions(start_time DESC)`,

	`CREATE TABLE IF NOT EXISTS teleop_frames (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES teleop_sessions(id),
		robot_id VARCHAR(100) NOT NULL REFERENCES robots(id),
		frame_index BIGINT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		data JSONB NOT NULL,
		UNIQUE (session_id, frame_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_teleop_frames_session_id ON teleop_frames(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_teleop_frames_robot_id ON teleop_frames(robot_id)`,

	`CREATE TABLE IF NOT EXISTS video_chunks (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES teleop_sessions(id),
		robot_id VARCHAR(100) NOT NULL REFERENCES robots(id),
		camera_key VARCHAR(100) NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		start_timestamp DOUBLE PRECISION NOT NULL,
		end_timestamp DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_video_chunks_session_camera ON video_chunks(session_id, camera_key)`,
}

// Migrate applies the schema migrations
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
