// Package diag runs the connector's self-diagnostics.
//
// Components:
//   - Doctor: executes the check suite against live configuration and channel
//   - Manifest: native messaging host manifest loading and validation
//   - Report: compiled check results with an overall health verdict
//
// Checks cover configuration validity, the native host binary, the host
// name, installed browser manifests, channel round-trip latency, and the
// pending-request backlog. Each failing check carries a remedy hint so the
// report is actionable without reading connector source.
//
// Example Usage:
//
//	doctor := diag.New(cfg, client.Messenger(), log)
//	report := doctor.Run(ctx)
//	if !report.Healthy {
//	    for _, check := range report.Checks {
//	        fmt.Println(check.Name, check.Level, check.Remedy)
//	    }
//	}
package diag
