package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/logs/level", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "info", decodeBody(t, w)["level"])
}

func TestSetLogLevel(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/logs/level", gin.H{"level": "debug"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "debug", body["level"])

	w = f.do(t, http.MethodGet, "/logs/level", nil)
	assert.Equal(t, "debug", decodeBody(t, w)["level"])
}

func TestSetLogLevelRejectsUnknown(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/logs/level", gin.H{"level": "chatty"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetLogLevelRequiresLevel(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/logs/level", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamLogs(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/logs/stream", gin.H{
		"source": "ui",
		"entries": []gin.H{
			{
				"id":      "log_1",
				"level":   "info",
				"message": "popup opened",
				"context": gin.H{"tab": float64(3), "active": true},
			},
			{
				"id":      "log_2",
				"level":   "verbose",
				"message": "render pass",
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["entries_received"])
	assert.Equal(t, float64(0), body["entries_dropped"])
}

func TestStreamLogsDropsInvalidEntries(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/logs/stream", gin.H{
		"source": "ui",
		"entries": []gin.H{
			{"id": "log_1", "level": "info", "message": "popup opened"},
			{"id": "log_2", "level": "info", "message": ""},
			{"id": "log_3", "level": "warn", "message": strings.Repeat(" ", 40) + "x"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["entries_received"])
	assert.Equal(t, float64(2), body["entries_dropped"])
}

func TestStreamLogsRejectsUnknownSource(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/logs/stream", gin.H{
		"source":  "backend",
		"entries": []gin.H{{"level": "info", "message": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid log source")
}

func TestStreamLogsRejectsEmptyBatch(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/logs/stream", gin.H{"source": "ui", "entries": []gin.H{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no log entries")
}
