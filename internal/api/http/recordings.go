package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
)

// maxImportBytes caps one imported archive. Exports are gzipped JSON, so
// this allows sessions far beyond the in-memory action cap.
const maxImportBytes = 32 << 20

// StartRecording begins a new session through the native host
func (h *Handlers) StartRecording(c *gin.Context) {
	params := make(map[string]interface{})
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session, err := h.recorder.Start(c.Request.Context(), params)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": session.ID,
		"startedAt": session.StartedAt,
	})
}

// StopRecording ends the active session and returns its summary
func (h *Handlers) StopRecording(c *gin.Context) {
	summary, err := h.recorder.Stop(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

// PauseRecording suspends the active session
func (h *Handlers) PauseRecording(c *gin.Context) {
	if err := h.recorder.Pause(c.Request.Context()); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  h.recorder.Status(),
	})
}

// ResumeRecording continues a paused session
func (h *Handlers) ResumeRecording(c *gin.Context) {
	if err := h.recorder.Resume(c.Request.Context()); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  h.recorder.Status(),
	})
}

// ListRecordings lists stored sessions
func (h *Handlers) ListRecordings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"recordings": h.recorder.List(),
		"stats":      h.recorder.Stats(),
	})
}

// GetRecording returns one session with all captured actions
func (h *Handlers) GetRecording(c *gin.Context) {
	sessionID := c.Param("id")
	if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, ok := h.recorder.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, session)
}

// DeleteRecording removes a finished session
func (h *Handlers) DeleteRecording(c *gin.Context) {
	sessionID := c.Param("id")
	if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, ok := h.recorder.Get(sessionID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if err := h.recorder.Delete(sessionID); err != nil {
		// Only the active session survives the existence check above
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sessionID,
	})
}

// ExportRecording streams a session archive for download
func (h *Handlers) ExportRecording(c *gin.Context) {
	sessionID := c.Param("id")
	if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	export, err := h.recorder.Export(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("Session exported",
		zap.String("session_id", sessionID),
		zap.Int("bytes", export.Size),
	)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Header("X-Archive-Checksum", export.Checksum)
	c.Data(http.StatusOK, "application/gzip", export.Data)
}

// ImportRecording accepts an exported archive and stores the session
func (h *Handlers) ImportRecording(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "archive exceeds import limit"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty archive"})
		return
	}

	session, err := h.recorder.Import(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.log.Info("Session imported",
		zap.String("session_id", session.ID),
		zap.Int("actions", len(session.Actions)),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"sessionId":   session.ID,
		"actionCount": len(session.Actions),
		"imported":    true,
	})
}
