// Package ws provides WebSocket handling for extension UI surfaces.
//
// This package implements the hub and client pumps that connect popup
// and settings pages to the service registry, and that fan event bus
// broadcasts out to every connected page.
//
// Features:
//   - Tool dispatch through the service registry
//   - Event bus fan-out to all connected clients
//   - Origin checks admitting extension and loopback pages
//   - Ping/pong keep-alive with read deadlines
//   - Per-client send buffering with slow-client drop
//
// Message Types (Client → Server):
//   - service: Execute a tool ({"type":"service","id":...,"tool":...,"params":...})
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Post-upgrade welcome with the assigned client ID
//   - result: Tool execution result correlated by message ID
//   - event: Broadcast bus event (recording lifecycle, connection state)
//   - pong: Ping reply
//   - error: Malformed or unroutable message
//
// Example Usage:
//
//	hub := ws.NewHub(registry, events, metrics, logger)
//	go hub.Run()
//	handler := ws.NewHandler(hub, cfg.Server.AllowedOrigins)
//	router.GET("/ws", handler.HandleConnection)
package ws
