// Package bus provides in-process event broadcast between the recorder,
// the host channel, and the transport layers.
//
// Publishers fire and forget: Publish never blocks, never fails, and does
// not care whether anyone is listening. Each subscriber owns a buffered
// channel; when the buffer is full the event is dropped for that
// subscriber only, which keeps one stalled WebSocket from backing up the
// recorder.
//
// Example Usage:
//
//	b := bus.New(logger)
//	sub := b.Subscribe(0)
//	defer b.Unsubscribe(sub)
//
//	go func() {
//		for event := range sub.Events() {
//			// forward to a client
//		}
//	}()
//
//	b.Publish(types.EventRecordingStarted, map[string]interface{}{
//		"sessionId": "s1",
//	})
package bus
