package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutAndExists(t *testing.T) {
	store := NewStore(t.TempDir(), 0)

	rel := filepath.Join("videos", "robot_A", "chunk.mp4")

	exists, err := store.Exists(rel)
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := store.Put(rel, strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	exists, err = store.Exists(rel)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := os.ReadFile(filepath.Join(store.Root(), rel))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestStore_PutLeavesNoTempFiles(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	rel := filepath.Join("videos", "robot_A", "chunk.mp4")

	_, err := store.Put(rel, strings.NewReader("payload"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(filepath.Join(store.Root(), rel)))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "chunk.mp4", entries[0].Name())
}

func TestStore_PutEnforcesSizeLimit(t *testing.T) {
	store := NewStore(t.TempDir(), 4)
	rel := filepath.Join("videos", "robot_A", "chunk.mp4")

	_, err := store.Put(rel, strings.NewReader("too large"))
	assert.ErrorIs(t, err, ErrTooLarge)

	// Nothing appears at the final path after a rejected write
	exists, err := store.Exists(rel)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_VideoChunkPathDeterministic(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	sessionID := uuid.MustParse("6e8bc430-9c3a-11d9-9669-0800200c9a66")

	p1, err := store.VideoChunkPath("robot_A", sessionID, "cam_front", 12.5, 18.25, ".mp4")
	require.NoError(t, err)
	p2, err := store.VideoChunkPath("robot_A", sessionID, "cam_front", 12.5, 18.25, ".mp4")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, filepath.Join("videos", "robot_A", sessionID.String(), "cam_front_12.5_18.25.mp4"), p1)
}

func TestStore_VideoChunkPathRejectsUnsafeComponents(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	sessionID := uuid.New()

	_, err := store.VideoChunkPath("../etc", sessionID, "cam", 0, 1, ".mp4")
	assert.ErrorIs(t, err, ErrUnsafePath)

	_, err = store.VideoChunkPath("robot_A", sessionID, "cam/../..", 0, 1, ".mp4")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestStore_BackupPath(t *testing.T) {
	store := NewStore(t.TempDir(), 0)

	tests := []struct {
		name    string
		dataset string
		rel     string
		want    string
		wantErr bool
	}{
		{
			name:    "nested file",
			dataset: "pick_place_v2",
			rel:     "data/chunk-000/episode_000001.parquet",
			want:    filepath.Join("backup", "pick_place_v2", "data", "chunk-000", "episode_000001.parquet"),
		},
		{
			name:    "traversal rejected",
			dataset: "pick_place_v2",
			rel:     "../../etc/passwd",
			wantErr: true,
		},
		{
			name:    "absolute rejected",
			dataset: "pick_place_v2",
			rel:     "/etc/passwd",
			wantErr: true,
		},
		{
			name:    "bad dataset rejected",
			dataset: "../up",
			rel:     "file.parquet",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.BackupPath(tt.dataset, tt.rel)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore(t.TempDir(), 0)
	rel := "videos/robot_A/chunk.mp4"

	_, err := store.Put(rel, strings.NewReader("payload"))
	require.NoError(t, err)
	require.NoError(t, store.Remove(rel))

	exists, err := store.Exists(rel)
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing an absent file is not an error
	assert.NoError(t, store.Remove(rel))
}

func TestStore_Usage(t *testing.T) {
	store := NewStore(t.TempDir(), 0)

	_, err := store.Put("videos/robot_A/a.mp4", strings.NewReader("12345"))
	require.NoError(t, err)
	_, err = store.Put("backup/ds/b.parquet", strings.NewReader("123"))
	require.NoError(t, err)

	bytes, files, err := store.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(8), bytes)
	assert.Equal(t, int64(2), files)
}
