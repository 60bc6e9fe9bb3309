package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nsmlab/teleop-ingest/internal/models"
	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/repository"
)

// RobotHandler handles robot-related requests
type RobotHandler struct {
	robots   repository.RobotRepository
	registry *registry.Registry
}

// NewRobotHandler creates a new robot handler
func NewRobotHandler(robots repository.RobotRepository, reg *registry.Registry) *RobotHandler {
	return &RobotHandler{
		robots:   robots,
		registry: reg,
	}
}

// RobotResponse represents a robot in API responses
type RobotResponse struct {
	ID            string                 `json:"id"`
	Name          *string                `json:"name,omitempty"`
	RobotType     *string                `json:"robotType,omitempty"`
	Status        string                 `json:"status"`
	Streaming     bool                   `json:"streaming"`
	LastHeartbeat *string                `json:"lastHeartbeat,omitempty"`
	IPAddress     *string                `json:"ipAddress,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     string                 `json:"createdAt"`
}

func (h *RobotHandler) toResponse(robot *models.Robot) RobotResponse {
	var heartbeat *string
	if robot.LastHeartbeat != nil {
		s := robot.LastHeartbeat.Format(time.RFC3339)
		heartbeat = &s
	}
	return RobotResponse{
		ID:            robot.ID,
		Name:          robot.Name,
		RobotType:     robot.RobotType,
		Status:        robot.Status,
		Streaming:     h.registry.RobotActive(robot.ID),
		LastHeartbeat: heartbeat,
		IPAddress:     robot.IPAddress,
		Metadata:      robot.Metadata,
		CreatedAt:     robot.CreatedAt.Format(time.RFC3339),
	}
}

// ListRobots retrieves all registered robots
// GET /api/v1/robots
func (h *RobotHandler) ListRobots(c *gin.Context) {
	robots, err := h.robots.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve robots",
		})
		return
	}

	response := make([]RobotResponse, len(robots))
	for i, robot := range robots {
		response[i] = h.toResponse(robot)
	}

	c.JSON(http.StatusOK, gin.H{
		"robots": response,
		"total":  len(response),
	})
}

// GetRobot retrieves a specific robot by ID
// GET /api/v1/robots/:id
func (h *RobotHandler) GetRobot(c *gin.Context) {
	robot, err := h.robots.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrRobotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "robot_not_found",
				"message": "Robot not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to retrieve robot",
		})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(robot))
}
