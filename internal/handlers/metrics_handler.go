package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nsmlab/teleop-ingest/internal/registry"
	"github.com/nsmlab/teleop-ingest/internal/telemetry"
)

// MetricsHandler exposes live ingestion counters for active stream sessions
type MetricsHandler struct {
	manager  *telemetry.Manager
	registry *registry.Registry
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(manager *telemetry.Manager, reg *registry.Registry) *MetricsHandler {
	return &MetricsHandler{
		manager:  manager,
		registry: reg,
	}
}

// IngestMetrics returns a per-session snapshot of buffer counters
// GET /api/v1/metrics/ingest
func (h *MetricsHandler) IngestMetrics(c *gin.Context) {
	metrics := h.manager.AllMetrics()
	if metrics == nil {
		metrics = []telemetry.Metrics{}
	}

	c.JSON(http.StatusOK, gin.H{
		"activeSessions": h.registry.Count(),
		"sessions":       metrics,
	})
}
