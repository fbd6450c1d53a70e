package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	extras := []string{"https://panel.example.com"}

	tests := []struct {
		name    string
		origin  string
		allowed bool
	}{
		{"no origin header", "", true},
		{"extension page", "chrome-extension://abcdefghijklmnop", true},
		{"loopback ipv4", "http://127.0.0.1:3000", true},
		{"localhost", "http://localhost:8765", true},
		{"loopback ipv6", "http://[::1]:8765", true},
		{"configured extra", "https://panel.example.com", true},
		{"other site", "https://evil.example.com", false},
		{"lookalike host", "http://localhost.evil.example.com", false},
		{"unparseable", "://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, OriginAllowed(tt.origin, extras))
		})
	}
}

func corsRouter(extras []string) *gin.Engine {
	router := gin.New()
	router.Use(CORS(extras))
	router.POST("/execute", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestCORSPreflightFromExtension(t *testing.T) {
	router := corsRouter(nil)
	origin := "chrome-extension://abcdefghijklmnop"

	req := httptest.NewRequest(http.MethodOptions, "/execute", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, origin, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	router := corsRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSAllowsConfiguredExtra(t *testing.T) {
	router := corsRouter([]string{"https://panel.example.com"})

	req := httptest.NewRequest(http.MethodPost, "/execute", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://panel.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
