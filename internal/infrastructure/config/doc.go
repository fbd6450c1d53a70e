// Package config provides 12-factor configuration management for the MKD connector.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML or TOML file can overlay the environment for settings that
// do not fit flat variables, such as redaction patterns and URL filters.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, auth token, allowed origins)
//   - Host: native messaging host settings (name, command, timeouts)
//   - Recording: session limits, sanitization, screenshot capture
//   - Notify: webhook notification settings
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	if path := os.Getenv("MKD_CONFIG"); path != "" {
//		config.LoadFile(cfg, path)
//	}
//
// Environment Variables:
//   - PORT, HOST, AUTH_TOKEN, ALLOWED_ORIGINS
//   - NATIVE_HOST_NAME, NATIVE_HOST_COMMAND, NATIVE_HOST_TIMEOUT
//   - RECORDING_MAX_SESSIONS, RECORDING_SANITIZE_INPUT
//   - LOG_LEVEL, LOG_DEVELOPMENT
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
