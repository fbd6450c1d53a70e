package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/bus"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// lifecycleEvents are the event types worth delivering to a webhook
var lifecycleEvents = map[types.EventType]bool{
	types.EventRecordingStarted: true,
	types.EventRecordingPaused:  true,
	types.EventRecordingResumed: true,
	types.EventRecordingStopped: true,
}

// Notifier delivers recording lifecycle events to a configured webhook.
// Delivery is best-effort with bounded retries; a dead webhook never
// blocks recording.
type Notifier struct {
	url    string
	client *retryablehttp.Client
	events *bus.Bus
	log    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	sub *bus.Subscription
	wg  sync.WaitGroup
}

// New creates a webhook notifier. With no URL configured the notifier
// stays dormant.
func New(cfg config.NotifyConfig, events *bus.Bus, log *logging.Logger) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil // outcomes are logged here, not per attempt

	ctx, cancel := context.WithCancel(context.Background())

	return &Notifier{
		url:    cfg.WebhookURL,
		client: client,
		events: events,
		log:    log.Named("notify"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the bus and begins delivering events
func (n *Notifier) Start() {
	if n.url == "" {
		n.log.Debug("Webhook notifications disabled")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sub != nil {
		return
	}
	n.sub = n.events.Subscribe(0)

	n.wg.Add(1)
	go n.run(n.sub)

	n.log.Info("Webhook notifications enabled", zap.String("url", n.url))
}

// Close stops delivery and waits for in-flight requests to settle
func (n *Notifier) Close() {
	n.mu.Lock()
	sub := n.sub
	n.sub = nil
	n.mu.Unlock()

	if sub != nil {
		n.events.Unsubscribe(sub)
	}
	n.cancel()
	n.wg.Wait()
}

// run drains the subscription until its channel closes
func (n *Notifier) run(sub *bus.Subscription) {
	defer n.wg.Done()
	for event := range sub.Events() {
		if !lifecycleEvents[event.Type] {
			continue
		}
		n.deliver(event)
	}
}

// deliver posts one event, letting the client retry transient failures
func (n *Notifier) deliver(event bus.Event) {
	payload, err := sonic.Marshal(event)
	if err != nil {
		n.log.Error("Encoding webhook payload failed", zap.Error(err))
		return
	}

	req, err := retryablehttp.NewRequestWithContext(n.ctx, http.MethodPost, n.url, payload)
	if err != nil {
		n.log.Error("Building webhook request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("Webhook delivery failed",
			zap.String("event", string(event.Type)),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Warn("Webhook rejected event",
			zap.String("event", string(event.Type)),
			zap.Int("status", resp.StatusCode))
		return
	}

	n.log.Debug("Webhook delivered",
		zap.String("event", string(event.Type)),
		zap.Int("status", resp.StatusCode))
}
