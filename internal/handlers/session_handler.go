package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/repository"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 500
)

// SessionHandler handles teleop session queries
type SessionHandler struct {
	sessions repository.SessionRepository
	frames   repository.FrameRepository
	chunks   repository.VideoChunkRepository
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions repository.SessionRepository,
	frames repository.FrameRepository,
	chunks repository.VideoChunkRepository,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		frames:   frames,
		chunks:   chunks,
	}
}

// SessionResponse represents a session in API responses
type SessionResponse struct {
	ID         string                 `json:"id"`
	RobotID    string                 `json:"robotId"`
	StartTime  string                 `json:"startTime"`
	EndTime    *string                `json:"endTime,omitempty"`
	Active     bool                   `json:"active"`
	FPS        int                    `json:"fps"`
	FrameCount int64                  `json:"frameCount"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

func sessionResponse(s *models.TeleopSession) SessionResponse {
	var endTime *string
	if s.EndTime != nil {
		str := s.EndTime.Format(time.RFC3339)
		endTime = &str
	}
	return SessionResponse{
		ID:         s.ID.String(),
		RobotID:    s.RobotID,
		StartTime:  s.StartTime.Format(time.RFC3339),
		EndTime:    endTime,
		Active:     s.Active(),
		FPS:        s.FPS,
		FrameCount: s.FrameCount,
		Metadata:   s.Metadata,
	}
}

// ListSessions retrieves sessions, newest first, optionally filtered by robot
// GET /api/v1/sessions?robot_id=&limit=&offset=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	limit := intQuery(c, "limit", defaultSessionLimit)
	if limit < 1 || limit > maxSessionLimit {
		limit = defaultSessionLimit
	}
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	sessions, err := h.sessions.List(c.Request.Context(), c.Query("robot_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve sessions",
		})
		return
	}

	response := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		response[i] = sessionResponse(s)
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": response,
		"total":    len(response),
	})
}

// GetSession retrieves one session together with its stored video chunks
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_session_id",
			"message": "Invalid session ID format",
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

	chunks, err := h.chunks.ListBySession(ctx, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve video chunks",
		})
		return
	}
	if chunks == nil {
		chunks = []*models.VideoChunk{}
	}

	c.JSON(http.StatusOK, gin.H{
		"session":     sessionResponse(session),
		"videoChunks": chunks,
	})
}

// GetSessionFrames retrieves committed frames for a session in index order
// GET /api/v1/sessions/:id/frames?limit=
func (h *SessionHandler) GetSessionFrames(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_session_id",
			"message": "Invalid session ID format",
		})
		return
	}

	limit := intQuery(c, "limit", defaultSessionLimit)
	if limit < 1 || limit > maxSessionLimit {
		limit = defaultSessionLimit
	}

	ctx := c.Request.Context()

	if _, err := h.sessions.Get(ctx, sessionID); err != nil {
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

	frames, err := h.frames.GetBySession(ctx, sessionID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve frames",
		})
		return
	}
	if frames == nil {
		frames = []*models.TeleopFrame{}
	}

	c.JSON(http.StatusOK, gin.H{
		"frames": frames,
		"total":  len(frames),
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
