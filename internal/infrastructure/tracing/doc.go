/*
Package tracing provides lightweight request tracing for debugging.

# Overview

This package tracks requests as they cross the connector: from the HTTP
or WebSocket surface down to native host round-trips. It follows
OpenTelemetry concepts but with a minimal implementation tailored to a
single-process connector.

# Features

- Trace context propagation via HTTP headers
- Span creation with parent-child relationships
- A span per host round-trip via the caller decorator
- Structured logging integration
- Low overhead with buffered span collection

# Usage

	// Create tracer
	tracer := tracing.New("connector", log)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Span around every host call
	caller := tracing.WrapCaller(tracer, hostClient)

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation

Successful spans log at debug level; failed spans log at error level
with the failure attached.
*/
package tracing
