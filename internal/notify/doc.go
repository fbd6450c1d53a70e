/*
Package notify delivers recording lifecycle events to an external webhook.

The notifier subscribes to the internal event bus and POSTs each
RECORDING_* event as JSON to the configured URL. Delivery uses bounded
retries with backoff for transient failures; connection-state and host
push events stay internal. Without a configured URL the notifier is a
no-op.

Example Usage:

	notifier := notify.New(cfg.Notify, eventBus, log)
	notifier.Start()
	defer notifier.Close()
*/
package notify
