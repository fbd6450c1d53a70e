package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/bus"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/service"
)

// Meter records connection and traffic counts for the metrics surface
type Meter interface {
	IncWSClients()
	DecWSClients()
	RecordWSMessage(direction, msgType string)
	RecordServiceCall(service, tool, status string, duration time.Duration)
}

// eventFrame is the broadcast envelope for bus events
type eventFrame struct {
	Type      string                 `json:"type"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Hub owns the connected WebSocket clients and fans bus events out to
// all of them. Clients register through the run loop, never directly.
type Hub struct {
	registry *service.Registry
	events   *bus.Bus
	meter    Meter
	log      *logging.Logger

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub dispatching to the given registry
func NewHub(registry *service.Registry, events *bus.Bus, meter Meter, log *logging.Logger) *Hub {
	return &Hub{
		registry:   registry,
		events:     events,
		meter:      meter,
		log:        log.Named("ws"),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run services registrations and broadcasts until Close is called.
// Call it on its own goroutine.
func (h *Hub) Run() {
	sub := h.events.Subscribe(256)
	defer h.events.Unsubscribe(sub)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.meter.IncWSClients()
			h.log.Info("Client connected", zap.String("client_id", client.ID()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.meter.DecWSClients()
				h.log.Info("Client disconnected", zap.String("client_id", client.ID()))
			}
			h.mu.Unlock()

		case event, ok := <-sub.Events():
			if !ok {
				// Bus closed underneath us; drop the clients too
				h.closeClients()
				return
			}
			h.broadcast(event)

		case <-h.stop:
			h.closeClients()
			return
		}
	}
}

// Close stops the run loop and disconnects every client
func (h *Hub) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// attach hands a client to the run loop. Returns false when the hub is
// already stopped so the caller can close the connection.
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stop:
		return false
	}
}

// detach removes a client. Safe after Close.
func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

// broadcast fans one bus event out to every connected client. Slow
// clients lose events rather than stalling the loop; the pumps notice
// dead peers via ping timeouts.
func (h *Hub) broadcast(event bus.Event) {
	frame := eventFrame{
		Type:      "event",
		Event:     string(event.Type),
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	data, err := sonic.Marshal(frame)
	if err != nil {
		h.log.Error("Encoding event frame failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
			h.meter.RecordWSMessage("outbound", "event")
		default:
			h.log.Debug("Dropping event for slow client",
				zap.String("client_id", client.ID()),
				zap.String("event", string(event.Type)),
			)
		}
	}
}

// closeClients signals every write pump to finish. Send channels stay
// open here since read pumps may still be dispatching.
func (h *Hub) closeClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.done)
		delete(h.clients, client)
		h.meter.DecWSClients()
	}
}
