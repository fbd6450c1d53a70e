/*
Package resilience provides the circuit breaker guarding flaky operations.

# Overview

Two paths in the connector fail in bursts rather than singly: spawning
the native host binary and scraping its stats for the metrics
aggregate. The breaker turns such bursts into fast rejections so a
missing or wedged host does not stall every caller for a full timeout.

# Usage

	breaker := resilience.New("host-spawn", resilience.Settings{
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	_, err := breaker.Execute(func() (interface{}, error) {
		return nil, spawn()
	})

# States

- Closed: calls pass through, failures are counted
- Open: calls fail immediately with ErrCircuitOpen
- Half-Open: after Timeout, up to MaxRequests probes decide recovery

A probe failure reopens the circuit; MaxRequests consecutive probe
successes close it. Counts age out of the closed state every Interval
so a slow trickle of old failures never trips the breaker.
*/
package resilience
