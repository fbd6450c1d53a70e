// Package types provides shared data structures for the MKD connector.
//
// This package defines core types used across all connector components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Service: Service provider definition
//   - Tool: A single invocable operation within a service
//   - Context: Execution context for operations
//   - Result: Standard operation result
//
// Request Types:
//   - ExecuteRequest: Service tool execution
//   - WSMessage: WebSocket communication
//
// State Management:
//   - RecordingState: Recording session state enum
//   - EventType: Internal bus notification names
//
// Example Usage:
//
//	res := &types.Result{
//	    Success: true,
//	    Data:    map[string]interface{}{"session_id": "sess_01"},
//	}
package types
