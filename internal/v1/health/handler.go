// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spot-the-bot/backend/internal/v1/bus"
	"github.com/spot-the-bot/backend/internal/v1/logging"
)

// Handler manages health check endpoints
type Handler struct {
	busService *bus.Service
}

// NewHandler creates a new health check handler. The bus may be nil when
// the Redis mirror is disabled.
func NewHandler(busService *bus.Service) *Handler {
	return &Handler{busService: busService}
}

// Liveness reports that the process is up.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Readiness reports whether dependencies are reachable. The Redis mirror is
// optional infrastructure, so its failure degrades the report but does not
// fail the endpoint.
func (h *Handler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK

	if h.busService != nil {
		if err := h.busService.Ping(ctx); err != nil {
			logging.Warn(ctx, "Redis readiness check failed", zap.Error(err))
			checks["redis"] = "unhealthy"
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "disabled"
	}

	c.JSON(status, gin.H{"status": "healthy", "checks": checks})
}
