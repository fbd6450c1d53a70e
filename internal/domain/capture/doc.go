// Package capture models browser interactions recorded by the extension.
//
// Actions arrive from the content script as loosely typed payloads and are
// normalized, sanitized, and enriched here before the recording manager
// stores them.
//
// Components:
//   - Action/Target: Normalized interaction model with ingest validation
//   - Sanitizer: Redaction of secrets and credentials from captured text
//   - Snapshotter: Element snapshot sanitization and locator derivation
//   - AssetStore: Bounded content-addressed store for screenshots
//
// Features:
//   - Builtin redaction rules (cloud keys, tokens, JWTs, card numbers
//     with Luhn verification, SSNs) plus custom patterns from the config file
//   - Password fields masked unconditionally, before storage or broadcast
//   - Snapshot sanitization strips scripts, handlers, and value attributes
//   - CSS and XPath locators derived from snapshots and verified against them
//   - Screenshot ingestion sniffs MIME from content and accepts images only
//
// Example Usage:
//
//	sanitizer := capture.NewSanitizer(cfg.Redaction, cfg.Recording.SanitizeInput, log)
//	action, err := capture.FromParams(payload)
//	sanitizer.ScrubAction(action)
//
//	snaps := capture.NewSnapshotter()
//	loc, err := snaps.DeriveLocator(action.Snapshot, action.Target)
package capture
