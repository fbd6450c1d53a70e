// Package service provides the tool registry for connector surfaces.
//
// The registry maintains a catalog of service providers and handles
// discovery, tool execution, and relevance scoring. UI surfaces address
// tools as "service.tool" over WebSocket or HTTP and the registry routes
// each call to the owning provider.
//
// Components:
//   - Registry: Central service catalog
//   - Provider: Interface for service implementations
//   - Service discovery with relevance scoring
//
// Features:
//   - Thread-safe service registration
//   - Category-based filtering
//   - Intent-based discovery with scoring
//   - Tool execution with context passing
//   - Service statistics
//
// Discovery Algorithm:
//   - Term matching over ID, name, and description
//   - Capability and per-tool matching
//   - Score-based ranking with a caller-supplied limit
//
// Example Usage:
//
//	registry := service.NewRegistry()
//	registry.Register(recorderProvider)
//	services := registry.Discover("recording start", 5)
//	result, err := registry.Execute(ctx, "recorder.start", params, appCtx)
package service
