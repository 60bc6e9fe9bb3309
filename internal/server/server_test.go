package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/filestore"
	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type healthyDB struct{}

func (healthyDB) HealthCheck(context.Context) error { return nil }

type testDeps struct {
	deps        *Dependencies
	sessionRepo *repository.MockSessionRepository
	chunkRepo   *repository.MockVideoChunkRepository
	robotRepo   *repository.MockRobotRepository
}

func newTestDeps(t *testing.T, apiKey string) testDeps {
	t.Helper()

	robotRepo := repository.NewMockRobotRepository()
	sessionRepo := repository.NewMockSessionRepository()
	frameRepo := repository.NewMockFrameRepository()
	chunkRepo := repository.NewMockVideoChunkRepository()
	reg := registry.New()
	manager := telemetry.NewManager()
	writer := telemetry.NewWriter(frameRepo, 1, time.Millisecond, nil)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8000"},
		Ingest: config.IngestConfig{
			BufferSize:    60,
			FlushInterval: time.Second,
			DefaultFPS:    60,
		},
		Storage: config.StorageConfig{
			Root:                   t.TempDir(),
			VideoMaxSizeMB:         500,
			VideoAllowedExtensions: []string{"mp4", "avi", "mov", "webm"},
		},
		Auth: config.AuthConfig{APIKey: apiKey},
	}

	return testDeps{
		deps: &Dependencies{
			Config:      cfg,
			Health:      healthyDB{},
			RobotRepo:   robotRepo,
			SessionRepo: sessionRepo,
			FrameRepo:   frameRepo,
			ChunkRepo:   chunkRepo,
			Store:       filestore.NewStore(cfg.Storage.Root, cfg.Storage.MaxVideoBytes()),
			Registry:    reg,
			Manager:     manager,
			Writer:      writer,
		},
		sessionRepo: sessionRepo,
		chunkRepo:   chunkRepo,
		robotRepo:   robotRepo,
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := New(newTestDeps(t, "").deps)

	for _, path := range []string{"/api/v1/health", "/api/v1/ready", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	router := New(newTestDeps(t, "").deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	// A caller-supplied ID is echoed back
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestAPIKeyEnforcement(t *testing.T) {
	router := New(newTestDeps(t, "secret-key").deps)

	protected := []string{
		"/api/v1/robots",
		"/api/v1/sessions",
		"/api/v1/metrics/ingest",
		"/api/v1/upload/storage-status",
	}
	for _, path := range protected {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-API-Key", "secret-key")
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	// Health stays open without a key
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadVideoThroughRouter(t *testing.T) {
	td := newTestDeps(t, "")
	router := New(td.deps)

	sessionID := uuid.New()
	td.sessionRepo.GetFunc = func(_ context.Context, id uuid.UUID) (*models.TeleopSession, error) {
		if id != sessionID {
			return nil, repository.ErrSessionNotFound
		}
		return &models.TeleopSession{ID: sessionID, RobotID: "robot_A", StartTime: time.Now(), FPS: 60}, nil
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("session_id", sessionID.String()))
	require.NoError(t, writer.WriteField("camera_key", "cam_front"))
	require.NoError(t, writer.WriteField("start_timestamp", "0"))
	require.NoError(t, writer.WriteField("end_timestamp", "6"))
	part, err := writer.CreateFormFile("file", "chunk.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("video-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload/video", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	exists, err := td.chunkRepo.ExistsByPath(context.Background(),
		"videos/robot_A/"+sessionID.String()+"/cam_front_0_6.mp4")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := New(newTestDeps(t, "").deps)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
