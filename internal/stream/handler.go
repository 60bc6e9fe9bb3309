// Package stream terminates per-robot telemetry stream connections.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nsmlab/teleop-ingest/internal/config"
	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

const (
	writeTimeout      = 5 * time.Second
	heartbeatInterval = 15 * time.Second
	dbOpTimeout       = 5 * time.Second
)

// frameError is the per-message rejection sent to the producer. Malformed
// frames are reported without closing the connection.
type frameError struct {
	Type       string `json:"type"`
	FrameIndex int64  `json:"frame_index"`
	Error      string `json:"error"`
}

// Handler owns the websocket telemetry endpoint. Each accepted connection
// opens one teleop session and one privately owned frame buffer.
type Handler struct {
	robots   repository.RobotRepository
	sessions repository.SessionRepository
	registry *registry.Registry
	manager  *telemetry.Manager
	writer   *telemetry.Writer
	cfg      config.IngestConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a stream handler
func NewHandler(
	robots repository.RobotRepository,
	sessions repository.SessionRepository,
	reg *registry.Registry,
	manager *telemetry.Manager,
	writer *telemetry.Writer,
	cfg config.IngestConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		robots:   robots,
		sessions: sessions,
		registry: reg,
		manager:  manager,
		writer:   writer,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Robots connect from lab networks, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/log/:robot_id
func (h *Handler) Serve(c *gin.Context) {
	robotID := c.Param("robot_id")
	if robotID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "robot_id is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response
		h.logger.Warn("websocket upgrade failed", "robot_id", robotID, "error", err)
		return
	}
	defer conn.Close()

	h.handle(conn, robotID, c.ClientIP())
}

// handle runs the read loop for one connection until disconnect, protocol
// error or idle timeout
func (h *Handler) handle(conn *websocket.Conn, robotID, clientIP string) {
	now := time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	err := h.robots.Upsert(ctx, &models.Robot{
		ID:            robotID,
		Status:        models.RobotStatusOnline,
		LastHeartbeat: &now,
		IPAddress:     &clientIP,
	})
	cancel()
	if err != nil {
		h.logger.Error("robot registration failed", "robot_id", robotID, "error", err)
		return
	}

	session := &models.TeleopSession{RobotID: robotID, FPS: h.cfg.DefaultFPS}
	ctx, cancel = context.WithTimeout(context.Background(), dbOpTimeout)
	err = h.sessions.Create(ctx, session)
	cancel()
	if err != nil {
		h.logger.Error("session create failed", "robot_id", robotID, "error", err)
		return
	}

	buffer := telemetry.NewBuffer(telemetry.BufferConfig{
		SessionID:     session.ID,
		RobotID:       robotID,
		Size:          h.cfg.BufferSize,
		FlushInterval: h.cfg.FlushInterval,
	}, h.writer, h.logger)

	h.registry.Add(session.ID, robotID)
	h.manager.Register(session.ID, buffer)

	h.logger.Info("stream connected",
		"robot_id", robotID,
		"session_id", session.ID,
		"buffer_size", h.cfg.BufferSize,
	)

	defer h.closeSession(session, buffer, robotID)

	lastHeartbeat := now
	for {
		if h.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(h.cfg.IdleTimeout))
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("stream read error", "robot_id", robotID, "session_id", session.ID, "error", err)
			}
			return
		}

		var msg models.FrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reject(conn, -1, "invalid JSON payload")
			continue
		}
		if err := msg.Validate(); err != nil {
			h.reject(conn, msg.FrameIndex, err.Error())
			continue
		}

		buffer.Append(models.FrameFromMessage(session.ID, robotID, &msg))

		if time.Since(lastHeartbeat) >= heartbeatInterval {
			lastHeartbeat = time.Now().UTC()
			ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
			if err := h.robots.Heartbeat(ctx, robotID, lastHeartbeat); err != nil {
				h.logger.Warn("heartbeat update failed", "robot_id", robotID, "error", err)
			}
			cancel()
		}
	}
}

// reject sends a per-message error to the producer. A failed write is left to
// the read loop to surface as a connection error.
func (h *Handler) reject(conn *websocket.Conn, frameIndex int64, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteJSON(frameError{Type: "error", FrameIndex: frameIndex, Error: reason})
}

// closeSession flushes the remaining buffer, ends the session and marks the
// robot offline when no other session is active. In-flight flushes complete
// before the session row is closed.
func (h *Handler) closeSession(session *models.TeleopSession, buffer *telemetry.Buffer, robotID string) {
	buffer.Close()
	h.manager.Unregister(session.ID)

	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	defer cancel()

	if err := h.sessions.Close(ctx, session.ID, time.Now().UTC()); err != nil {
		h.logger.Error("session close failed", "session_id", session.ID, "error", err)
	}

	stillActive := h.registry.Remove(session.ID)
	if !stillActive {
		if err := h.robots.SetStatus(ctx, robotID, models.RobotStatusOffline); err != nil {
			h.logger.Error("robot status update failed", "robot_id", robotID, "error", err)
		}
	}

	m := buffer.Metrics()
	h.logger.Info("stream disconnected",
		"robot_id", robotID,
		"session_id", session.ID,
		"total_frames", m.TotalFrames,
		"committed_frames", m.CommittedFrames,
		"dropped_frames", m.DroppedFrames,
		"flush_count", m.FlushCount,
	)
}
