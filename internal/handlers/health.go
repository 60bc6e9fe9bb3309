package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthHandler handles liveness check requests
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// Pinger is the dependency readiness contract, satisfied by the database wrapper
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// ReadyHandler returns a readiness handler that verifies the database is reachable
func ReadyHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status: "ok",
		})
	}
}
