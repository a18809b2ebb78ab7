package handler

import (
	"fmt"
	"net/http"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/service"

	"github.com/gin-gonic/gin"
)

// TriggerHandler handles API requests related to autoscaling triggers
type TriggerHandler struct {
	scalingService *service.Service
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(scalingService *service.Service) *TriggerHandler {
	return &TriggerHandler{
		scalingService: scalingService,
	}
}

// SetupRoutes registers handler routes to the router
func (h *TriggerHandler) SetupRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/triggers", h.listTriggers)
		api.GET("/triggers/:name", h.getTrigger)
		api.POST("/triggers/:name/events", h.submitEvent)
	}
}

// listTriggers returns the status of all scheduled triggers
func (h *TriggerHandler) listTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"triggers": h.scalingService.TriggerStatuses(),
	})
}

// getTrigger returns the status of a single trigger
func (h *TriggerHandler) getTrigger(c *gin.Context) {
	name := c.Param("name")

	status, err := h.scalingService.TriggerStatus(name)
	if err != nil {
		if common.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": fmt.Sprintf("trigger %s not found", name),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to retrieve trigger: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// submitEvent enqueues a manual event on a manual trigger
func (h *TriggerHandler) submitEvent(c *gin.Context) {
	name := c.Param("name")

	payload := make(map[string]interface{})
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("invalid request body: %v", err),
			})
			return
		}
	}

	if err := h.scalingService.SubmitManualRequest(name, payload); err != nil {
		switch {
		case common.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{
				"error": fmt.Sprintf("trigger %s not found", name),
			})
		case common.IsInvalidInput(err):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("failed to submit event: %v", err),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "queued",
		"trigger": name,
	})
}
