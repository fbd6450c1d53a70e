package notify

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/flying-pisces/mkd-automation-sub002/internal/bus"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

func newTestNotifier(t *testing.T, url string, retries int) (*Notifier, *bus.Bus) {
	t.Helper()
	events := bus.New(logging.NewNop())
	cfg := config.NotifyConfig{
		WebhookURL: url,
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	}
	n := New(cfg, events, logging.NewNop())
	t.Cleanup(func() {
		n.Close()
		events.Close()
	})
	return n, events
}

func awaitBody(t *testing.T, received <-chan []byte) bus.Event {
	t.Helper()
	select {
	case body := <-received:
		var event bus.Event
		if err := sonic.Unmarshal(body, &event); err != nil {
			t.Fatalf("Undecodable webhook payload: %v", err)
		}
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for webhook delivery")
		return bus.Event{}
	}
}

func TestNotifierDeliversLifecycleEvents(t *testing.T) {
	received := make(chan []byte, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, events := newTestNotifier(t, server.URL, 0)
	n.Start()

	events.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "sess-1"})
	event := awaitBody(t, received)
	if event.Type != types.EventRecordingStarted {
		t.Errorf("Expected RECORDING_STARTED, got %s", event.Type)
	}
	if event.Data["sessionId"] != "sess-1" {
		t.Errorf("Session id lost: %v", event.Data)
	}

	events.Publish(types.EventRecordingStopped, map[string]interface{}{"sessionId": "sess-1"})
	event = awaitBody(t, received)
	if event.Type != types.EventRecordingStopped {
		t.Errorf("Expected RECORDING_STOPPED, got %s", event.Type)
	}
}

func TestNotifierIgnoresNonLifecycleEvents(t *testing.T) {
	received := make(chan []byte, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, events := newTestNotifier(t, server.URL, 0)
	n.Start()

	// Only the second publish may reach the webhook
	events.Publish(types.EventConnectionChange, map[string]interface{}{"connected": true})
	events.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "sess-2"})

	event := awaitBody(t, received)
	if event.Type != types.EventRecordingStarted {
		t.Errorf("Connection event should have been filtered, got %s", event.Type)
	}
}

func TestNotifierRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n, events := newTestNotifier(t, server.URL, 2)
	n.Start()

	events.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "sess-3"})

	deadline := time.Now().Add(10 * time.Second)
	for attempts.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if got := attempts.Load(); got < 2 {
		t.Errorf("Expected at least 2 attempts, got %d", got)
	}
}

func TestNotifierDisabledWithoutURL(t *testing.T) {
	n, events := newTestNotifier(t, "", 0)
	n.Start()

	if n.sub != nil {
		t.Fatal("Notifier without a URL must not subscribe")
	}

	// Publishing must not panic with the notifier dormant
	events.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "sess-4"})
}

func TestNotifierCloseStopsDelivery(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, events := newTestNotifier(t, server.URL, 0)
	n.Start()
	n.Close()

	events.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "sess-5"})
	time.Sleep(100 * time.Millisecond)

	if got := attempts.Load(); got != 0 {
		t.Errorf("Expected no deliveries after close, got %d", got)
	}
}
