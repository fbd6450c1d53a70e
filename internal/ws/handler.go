package ws

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/api/middleware"
)

// systemFrame greets a client after the upgrade
type systemFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	ClientID  string `json:"clientId"`
	Timestamp int64  `json:"timestamp"`
}

// Handler upgrades HTTP requests and hands connections to the hub
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates an upgrade handler. Extra origins beyond the
// extension and loopback defaults come from configuration.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	h := &Handler{hub: hub}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

// HandleConnection upgrades the request and starts the client pumps
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.Warn("Upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn)
	if !h.hub.attach(client) {
		conn.Close()
		return
	}

	welcome, err := sonic.Marshal(systemFrame{
		Type:      "system",
		Message:   "Connected to MKD connector",
		ClientID:  client.ID(),
		Timestamp: time.Now().UnixMilli(),
	})
	if err == nil {
		client.send <- welcome
	}

	go client.writePump()
	go client.readPump()
}
