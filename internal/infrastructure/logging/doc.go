// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Log Levels:
//   - Debug: Verbose debugging information
//   - Info: General informational messages
//   - Warn: Warning messages
//   - Error: Error messages
//   - Fatal: Fatal errors (exits process)
//
// Features:
//   - Zero-allocation logging in production
//   - Structured fields for context
//   - Configurable output paths
//   - Runtime level changes through an atomic handle
//
// Example Usage:
//
//	logger, _ := logging.New(logging.DefaultConfig())
//	logger.Info("Connector starting", zap.String("port", "8765"))
//	logger.SetLevel("debug")
//	logger.Error("Failed to reach host", zap.Error(err))
package logging
