// Package host speaks the browser native messaging protocol to the MKD
// host process.
//
// Frames are JSON bodies behind a 4-byte little-endian length prefix, the
// format browsers use on a native host's stdio. The connector spawns the
// host binary itself and drives the same wire format over the child's
// pipes.
//
// Features:
//   - Length-prefixed JSON framing with browser-compatible size limits
//   - Request/response correlation keyed by unique counter-timestamp IDs
//   - Exactly-once settlement across response, timeout, failure, and shutdown
//   - Sequential health probing folded into a connection status snapshot
//   - Circuit-broken process respawn for caller-initiated reconnects
//
// Example Usage:
//
//	client := host.NewClient(cfg.Host, logger)
//	if err := client.Start(); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	data, err := client.Messenger().Call(ctx, "START_RECORDING", params)
//	if host.IsTimeout(err) {
//		// host did not answer within the request timeout
//	}
package host
