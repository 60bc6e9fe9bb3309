package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/filestore"
	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/repository"
)

// UploadHandler handles video chunk and dataset backup uploads
type UploadHandler struct {
	sessions repository.SessionRepository
	chunks   repository.VideoChunkRepository
	store    *filestore.Store
	cfg      config.StorageConfig
	logger   *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(
	sessions repository.SessionRepository,
	chunks repository.VideoChunkRepository,
	store *filestore.Store,
	cfg config.StorageConfig,
	logger *slog.Logger,
) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{
		sessions: sessions,
		chunks:   chunks,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
}

// UploadVideo receives one video chunk as multipart form data and stores
// blob first, metadata second. The chunk identity (session, camera, time
// range) maps to a deterministic file path, so a redelivered chunk hits the
// same path and is acknowledged without a second write.
// POST /api/v1/upload/video
func (h *UploadHandler) UploadVideo(c *gin.Context) {
	sessionIDParam := c.PostForm("session_id")
	sessionID, err := uuid.Parse(sessionIDParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_session_id",
			"message": "Invalid session ID format",
		})
		return
	}

	cameraKey := c.PostForm("camera_key")
	if cameraKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_camera_key",
			"message": "camera_key form field is required",
		})
		return
	}

	start, err := strconv.ParseFloat(c.PostForm("start_timestamp"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_timestamp",
			"message": "start_timestamp must be a number",
		})
		return
	}
	end, err := strconv.ParseFloat(c.PostForm("end_timestamp"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_timestamp",
			"message": "end_timestamp must be a number",
		})
		return
	}
	if end <= start {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_time_range",
			"message": "end_timestamp must be greater than start_timestamp",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_file",
			"message": "file form field is required",
		})
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !h.cfg.ExtensionAllowed(ext) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unsupported_file_type",
			"message": fmt.Sprintf("File extension %q is not allowed", ext),
		})
		return
	}
	if file.Size > h.cfg.MaxVideoBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "file_too_large",
			"message": fmt.Sprintf("File exceeds the %dMB limit", h.cfg.VideoMaxSizeMB),
		})
		return
	}

	ctx := c.Request.Context()

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "session_not_found",
				"message": "Session not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve session",
		})
		return
	}

	relPath, err := h.store.VideoChunkPath(session.RobotID, sessionID, cameraKey, start, end, "."+ext)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_camera_key",
			"message": "camera_key contains unsupported characters",
		})
		return
	}

	// Duplicate delivery of the same chunk is acknowledged, not re-stored
	exists, err := h.chunks.ExistsByPath(ctx, relPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to check for existing chunk",
		})
		return
	}
	if exists {
		c.JSON(http.StatusOK, gin.H{
			"status": "already_exists",
			"path":   relPath,
		})
		return
	}

	overlap, err := h.chunks.HasOverlap(ctx, sessionID, cameraKey, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to check chunk time range",
		})
		return
	}
	if overlap {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "chunk_overlap",
			"message": "Chunk time range overlaps an already stored chunk for this camera",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read uploaded file",
		})
		return
	}
	defer src.Close()

	// Blob before metadata: a crash between the two leaves an orphan file,
	// never a metadata row pointing at nothing
	size, err := h.store.Put(relPath, src)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "file_too_large",
				"message": fmt.Sprintf("File exceeds the %dMB limit", h.cfg.VideoMaxSizeMB),
			})
			return
		}
		h.logger.Error("video blob write failed", "path", relPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to store video file",
		})
		return
	}

	chunk := &models.VideoChunk{
		SessionID:      sessionID,
		RobotID:        session.RobotID,
		CameraKey:      cameraKey,
		FilePath:       relPath,
		StartTimestamp: start,
		EndTimestamp:   end,
	}
	if err := h.chunks.Create(ctx, chunk); err != nil {
		if errors.Is(err, repository.ErrChunkExists) {
			// Lost the race to a concurrent duplicate; the blob at this path
			// is identical, so report success
			c.JSON(http.StatusOK, gin.H{
				"status": "already_exists",
				"path":   relPath,
			})
			return
		}
		// Roll the blob back so a retry starts clean
		if rmErr := h.store.Remove(relPath); rmErr != nil {
			h.logger.Error("orphan blob cleanup failed", "path", relPath, "error", rmErr)
		}
		h.logger.Error("video chunk metadata write failed", "path", relPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to record video chunk",
		})
		return
	}

	h.logger.Info("video chunk stored",
		"session_id", sessionID,
		"camera_key", cameraKey,
		"path", relPath,
		"size", size,
	)
	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"path":   relPath,
		"size":   size,
	})
}

// UploadSync receives dataset files pushed by the sidecar synchronizer and
// stores them under backup/{dataset}/{relative_path}. Re-uploads overwrite
// the same path with identical content, which keeps retries harmless.
// POST /api/v1/upload/sync
func (h *UploadHandler) UploadSync(c *gin.Context) {
	dataset := c.PostForm("dataset_name")
	if dataset == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_dataset_name",
			"message": "dataset_name form field is required",
		})
		return
	}
	relative := c.PostForm("relative_path")
	if relative == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_relative_path",
			"message": "relative_path form field is required",
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "missing_file",
			"message": "file form field is required",
		})
		return
	}

	relPath, err := h.store.BackupPath(dataset, relative)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_path",
			"message": "dataset_name or relative_path is not a safe path",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read uploaded file",
		})
		return
	}
	defer src.Close()

	size, err := h.store.Put(relPath, src)
	if err != nil {
		h.logger.Error("dataset file write failed", "path", relPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to store dataset file",
		})
		return
	}

	h.logger.Info("dataset file stored", "dataset", dataset, "path", relPath, "size", size)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"path":   relPath,
		"size":   size,
	})
}

// StorageStatus reports storage root usage and upload limits
// GET /api/v1/upload/storage-status
func (h *UploadHandler) StorageStatus(c *gin.Context) {
	bytes, files, err := h.store.Usage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to inspect storage",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"storage": gin.H{
			"root":       h.store.Root(),
			"totalBytes": bytes,
			"fileCount":  files,
		},
		"config": gin.H{
			"maxVideoSizeMb":    h.cfg.VideoMaxSizeMB,
			"allowedExtensions": h.cfg.VideoAllowedExtensions,
		},
	})
}
