package handler

import (
	"net/http"
	"time"

	"searchscaler/internal/features/autoscaling/service"

	"github.com/gin-gonic/gin"
)

// HealthHandler provides health check endpoints backed by the
// autoscaling service
type HealthHandler struct {
	scalingService *service.Service
	startTime      time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(scalingService *service.Service) *HealthHandler {
	return &HealthHandler{
		scalingService: scalingService,
		startTime:      time.Now(),
	}
}

// SetupRoutes registers handler routes to the router
func (h *HealthHandler) SetupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.healthCheck)
		api.GET("/readiness", h.readinessCheck)
		api.GET("/liveness", h.livenessCheck)
	}
}

// healthCheck confirms the service is running
func (h *HealthHandler) healthCheck(c *gin.Context) {
	uptime := time.Since(h.startTime).String()

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"message":           "Service is running",
		"uptime":            uptime,
		"scheduledTriggers": len(h.scalingService.TriggerStatuses()),
	})
}

// readinessCheck confirms the trigger schedule has been applied. Until the
// first configuration apply completes there are no scheduled triggers, so
// the service cannot meaningfully serve trigger requests yet.
func (h *HealthHandler) readinessCheck(c *gin.Context) {
	scheduled := len(h.scalingService.TriggerStatuses())
	if scheduled == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"message": "No triggers scheduled yet",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ready",
		"message":           "Service is ready to accept requests",
		"scheduledTriggers": scheduled,
	})
}

// livenessCheck provides a health endpoint for Kubernetes liveness probe
func (h *HealthHandler) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
