package ws

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/id"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/utils"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Ceiling for one dispatched call, above the native host timeout so
	// the host error surfaces instead of a bare context cancellation
	dispatchTimeout = 45 * time.Second

	// Outgoing frames queued per client before events get dropped
	sendBuffer = 256
)

// resultFrame answers a service dispatch
type resultFrame struct {
	Type   string        `json:"type"`
	ID     string        `json:"id,omitempty"`
	Result *types.Result `json:"result"`
}

// errorFrame reports a malformed or unroutable message
type errorFrame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// pongFrame answers an application-level ping
type pongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Client is one WebSocket connection. The read pump dispatches tool
// calls, the write pump drains the send channel.
type Client struct {
	id   id.ClientID
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *logging.Logger
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	clientID := id.NewClientID()
	return &Client{
		id:   clientID,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  hub.log.With(zap.String("client_id", clientID.String())),
	}
}

// ID returns the generated client identifier
func (c *Client) ID() string {
	return c.id.String()
}

// readPump reads messages from the connection and dispatches them.
// Dispatches run serially per client so captured actions append in the
// order the extension sent them.
func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", zap.Error(err))
			}
			return
		}

		var msg types.WSMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			c.log.Debug("Discarding unparseable message", zap.Error(err))
			c.sendError("", "invalid JSON message")
			continue
		}
		c.hub.meter.RecordWSMessage("inbound", msg.Type)

		switch msg.Type {
		case "service":
			c.dispatch(msg)
		case "ping":
			c.reply("pong", pongFrame{Type: "pong", Timestamp: time.Now().UnixMilli()})
		default:
			c.sendError(msg.ID, "unknown message type: "+msg.Type)
		}
	}
}

// writePump drains the send channel and keeps the connection alive
// with protocol pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Read pump ended and the hub released the client
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			// Hub shutdown. The send channel stays open because the
			// read pump may still be queueing replies.
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one tool call through the registry and answers with
// a result frame
func (c *Client) dispatch(msg types.WSMessage) {
	if msg.Tool == "" {
		c.sendError(msg.ID, "missing tool")
		return
	}
	if err := utils.ValidateParams(msg.Params); err != nil {
		c.sendError(msg.ID, err.Error())
		return
	}

	clientID := c.id.String()
	appCtx := &types.Context{ClientID: &clientID}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.hub.registry.Execute(ctx, msg.Tool, msg.Params, appCtx)
	c.recordCall(msg.Tool, result, time.Since(start))
	if err != nil {
		c.log.Debug("Tool call failed",
			zap.String("tool", msg.Tool),
			zap.Error(err),
		)
	}
	if result == nil {
		errMsg := "execution failed"
		if err != nil {
			errMsg = err.Error()
		}
		result = &types.Result{Success: false, Error: &errMsg}
	}

	c.reply("result", resultFrame{Type: "result", ID: msg.ID, Result: result})
}

// recordCall reports the dispatch to the metrics surface
func (c *Client) recordCall(toolID string, result *types.Result, elapsed time.Duration) {
	svc, tool := "invalid", toolID
	if parts := strings.SplitN(toolID, ".", 2); len(parts) == 2 {
		svc, tool = parts[0], parts[1]
	}
	status := "error"
	if result != nil && result.Success {
		status = "success"
	}
	c.hub.meter.RecordServiceCall(svc, tool, status, elapsed)
}

// sendError queues an error frame
func (c *Client) sendError(msgID, message string) {
	c.reply("error", errorFrame{
		Type:      "error",
		ID:        msgID,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	})
}

// reply queues one outgoing frame, dropping it if the peer is stalled
func (c *Client) reply(msgType string, frame interface{}) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		c.log.Error("Encoding reply failed", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
		c.hub.meter.RecordWSMessage("outbound", msgType)
	default:
		c.log.Warn("Dropping reply for slow client", zap.String("type", msgType))
	}
}
