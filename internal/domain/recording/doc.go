// Package recording manages recording session lifecycle.
//
// The manager owns at most one active session. Lifecycle transitions
// (start, stop, pause, resume) are acknowledged by the native host before
// local state changes; captured actions flow in through AppendAction and
// are sanitized on the way. Finished sessions live in a bounded in-memory
// history that evicts oldest first.
//
// Components:
//   - Manager: Lifecycle orchestration against the native host
//   - Session/Summary: Session model and stop-time summary
//   - Timing: Gap statistics over action timestamps (gonum)
//   - URLFilter: doublestar globs deciding which URLs are captured
//   - Export/Import: Gzipped JSON archives with checksum and charset
//     normalization
//
// Features:
//   - State guards: pause only while recording, resume only while paused,
//     actions only while actively recording
//   - Script steps compiled with goja before acceptance
//   - Sessions finalized locally even when the host stop call fails
//   - Imported sessions are replay sources, never resumed
//
// Example Usage:
//
//	manager, err := recording.NewManager(cfg.Recording, cfg.Redaction, client.Messenger(), bus, log)
//	session, err := manager.Start(ctx, map[string]interface{}{"url": pageURL})
//	action, err := manager.AppendAction(payload)
//	summary, err := manager.Stop(ctx)
package recording
