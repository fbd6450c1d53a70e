package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/flying-pisces/mkd-automation-sub002/internal/diag"
	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/recording"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/monitoring"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/resilience"
	"github.com/flying-pisces/mkd-automation-sub002/internal/service"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
	"github.com/flying-pisces/mkd-automation-sub002/internal/ws"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *service.Registry
	recorder *recording.Manager
	client   *host.Client
	doctor   *diag.Doctor
	hub      *ws.Hub
	metrics  *monitoring.Metrics
	log      *logging.Logger
	version  string
}

// NewHandlers creates a new handler set
func NewHandlers(
	registry *service.Registry,
	recorder *recording.Manager,
	client *host.Client,
	doctor *diag.Doctor,
	hub *ws.Hub,
	metrics *monitoring.Metrics,
	log *logging.Logger,
	version string,
) *Handlers {
	return &Handlers{
		registry: registry,
		recorder: recorder,
		client:   client,
		doctor:   doctor,
		hub:      hub,
		metrics:  metrics,
		log:      log.Named("api"),
		version:  version,
	}
}

// Root handles the banner check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "MKD Connector",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	hostStatus := h.client.Status()

	status := "healthy"
	if !hostStatus.Connected {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"host":      hostStatus,
		"recording": h.recorder.Stats(),
		"services":  h.registry.Stats(),
		"ws":        gin.H{"clients": h.hub.ClientCount()},
	})
}

// Status reports the connection and recording state for UI polling
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"host":          h.client.Status(),
		"recording":     h.recorder.Status(),
		"uptimeSeconds": h.metrics.GetUptimeSeconds(),
		"version":       h.version,
	})
}

// Diagnostics runs the doctor checks and returns the report
func (h *Handlers) Diagnostics(c *gin.Context) {
	report := h.doctor.Run(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// ReconnectHost tears down and respawns the native host process
func (h *Handlers) ReconnectHost(c *gin.Context) {
	if err := h.client.Reconnect(); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
			"host":    h.client.Status(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"host":    h.client.Status(),
	})
}

// ListServices lists all registered services
func (h *Handlers) ListServices(c *gin.Context) {
	categoryStr := c.Query("category")

	var category *types.Category
	if categoryStr != "" {
		cat := types.Category(categoryStr)
		switch cat {
		case types.CategoryRecording, types.CategoryConnection, types.CategorySystem, types.CategoryDiagnostics:
			category = &cat
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + categoryStr})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// DiscoverServices finds relevant services for a query
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
		Limit int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 || req.Limit > 20 {
		req.Limit = 5
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"services": h.registry.Discover(req.Query, req.Limit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateToolID(req.ToolID, "tool_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateParams(req.Params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var appCtx *types.Context
	if req.ClientID != nil {
		appCtx = &types.Context{ClientID: req.ClientID}
	}

	svc, tool := splitToolID(req.ToolID)
	timer := monitoring.NewTimer(h.metrics, svc, tool)

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		timer.Stop("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := "success"
	if !result.Success {
		status = "error"
	}
	timer.Stop(status)

	c.JSON(http.StatusOK, result)
}

// statusForError maps lifecycle errors onto response codes. State
// conflicts are the caller's fault, host channel failures are upstream.
func statusForError(err error) int {
	var stateErr *recording.StateError
	switch {
	case errors.Is(err, recording.ErrNotActive),
		errors.Is(err, recording.ErrAlreadyActive),
		errors.As(err, &stateErr):
		return http.StatusConflict
	case host.CodeOf(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func splitToolID(toolID string) (string, string) {
	if parts := strings.SplitN(toolID, ".", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "invalid", toolID
}
