/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
connector, tracking HTTP requests, service tool calls, native host
round-trips, recording activity, and WebSocket traffic.

# Features

- HTTP request metrics (latency, throughput)
- Service tool call metrics (duration, status)
- Host channel metrics (request outcomes, round-trip latency, pending depth)
- Recording lifecycle metrics (active flag, stored sessions, action outcomes)
- WebSocket connection and message metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Wire host request outcomes through the messenger observer
	client := host.NewClient(cfg, log, host.WithObserver(metrics.RecordHostRequest))

	// Time tool dispatches
	timer := monitoring.NewTimer(metrics, "recorder", "action")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	router.GET("/metrics", monitoring.PrometheusHandler())

The JSON aggregate endpoint builds on GetSnapshot and GetUptimeSeconds.
*/
package monitoring
