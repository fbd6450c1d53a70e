package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
)

// UILogEntry is one log record forwarded from an extension surface
type UILogEntry struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
	Priority  int                    `json:"priority"`
}

// UILogStreamRequest is a batch of UI log entries
type UILogStreamRequest struct {
	Source    string       `json:"source"`
	Entries   []UILogEntry `json:"entries"`
	Timestamp int64        `json:"timestamp"`
}

// GetLogLevel reports the current logging verbosity
func (h *Handlers) GetLogLevel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"level": h.log.Level(),
	})
}

// SetLogLevel changes logging verbosity at runtime
func (h *Handlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.log.SetLevel(req.Level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("Log level changed", zap.String("level", req.Level))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"level":   h.log.Level(),
	})
}

// StreamLogs ingests batched logs from extension surfaces and re-emits
// them through the structured logger. Entries with oversized or
// malformed messages are dropped, the rest of the batch still lands.
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req UILogStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log request format"})
		return
	}

	if req.Source != "ui" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log source"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no log entries provided"})
		return
	}

	dropped := 0
	for _, entry := range req.Entries {
		if err := utils.ValidateLogMessage(entry.Message); err != nil {
			dropped++
			h.log.Warn("Dropped UI log entry",
				zap.String("ui_log_id", entry.ID),
				zap.Error(err),
			)
			continue
		}
		h.emitUILogEntry(entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(req.Entries),
		"entries_dropped":  dropped,
		"timestamp":        time.Now().Unix(),
	})
}

// emitUILogEntry replays one UI entry at its original level
func (h *Handlers) emitUILogEntry(entry UILogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+4)
	fields = append(fields,
		zap.String("ui_log_id", entry.ID),
		zap.String("source", "ui"),
		zap.String("ui_timestamp", entry.Timestamp),
		zap.Int("priority", entry.Priority),
	)

	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case int:
			fields = append(fields, zap.Int(key, v))
		case int64:
			fields = append(fields, zap.Int64(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	logger := h.log.Named("ui")
	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "info":
		logger.Info(entry.Message, fields...)
	case "debug":
		logger.Debug(entry.Message, fields...)
	case "verbose":
		// The extension logger has a verbose tier below debug
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
