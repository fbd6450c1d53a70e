// Package main is the entry point for the MKD connector daemon.
//
// The daemon bridges browser extension surfaces and the native recording
// host: it spawns the host process, correlates native messaging
// request/response pairs, relays recording lifecycle commands, and fans
// state changes out to every connected UI page.
//
// Architecture:
//
//	Extension (popup/settings) → HTTP + WebSocket → Connector → Native host (stdio)
//
// The daemon provides:
//   - REST API for recording control, archives, and diagnostics
//   - WebSocket streaming for service dispatch and event broadcast
//   - Service provider registry
//   - Prometheus metrics and a JSON aggregate
//   - Rate limiting and origin policy
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML or TOML config file (-config, or config.yaml/config.toml
//     in the user config directory)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./connectord -port 8765
//
//	# Development mode (colored logs, debug level)
//	./connectord -dev
//
//	# With a config file carrying redaction patterns
//	./connectord -config /etc/mkd/connector.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
