// Package main is the MKD connector doctor.
//
// The doctor queries a running connector daemon for its diagnostic
// report and renders each check as pass, warn, or fail with the
// remediation step for anything broken. A daemon that cannot be
// reached is reported as a failing check of its own rather than an
// error, so the doctor always produces a readable verdict.
//
// Usage:
//
//	# Check the default daemon address
//	./doctor
//
//	# Point at another daemon
//	./doctor -addr http://127.0.0.1:9000
//
//	# Machine-readable output
//	./doctor -json
//
// The process exits non-zero when any check fails, so the doctor can
// gate installer and CI flows.
package main
