package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

func newTestBus() *Bus {
	return New(logging.NewNop())
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	first := b.Subscribe(4)
	second := b.Subscribe(4)

	b.Publish(types.EventRecordingStarted, map[string]interface{}{"sessionId": "s1"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case event := <-sub.Events():
			assert.Equal(t, types.EventRecordingStarted, event.Type)
			assert.Equal(t, "s1", event.Data["sessionId"])
			assert.NotZero(t, event.Timestamp)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	b.Publish(types.EventRecordingStopped, nil)

	stats := b.Stats()
	assert.Equal(t, 0, stats.Subscribers)
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(0), stats.Dropped)
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	slow := b.Subscribe(1)
	fast := b.Subscribe(8)

	// The second publish overflows the slow subscriber's buffer.
	b.Publish(types.EventRecordingStarted, nil)
	b.Publish(types.EventRecordingStopped, nil)

	assert.Equal(t, uint64(1), b.Stats().Dropped)

	// Slow subscriber keeps the first event only.
	event := <-slow.Events()
	assert.Equal(t, types.EventRecordingStarted, event.Type)
	select {
	case extra := <-slow.Events():
		t.Fatalf("slow subscriber should not receive %s", extra.Type)
	case <-time.After(20 * time.Millisecond):
	}

	// Fast subscriber sees both.
	assert.Equal(t, types.EventRecordingStarted, (<-fast.Events()).Type)
	assert.Equal(t, types.EventRecordingStopped, (<-fast.Events()).Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	sub := b.Subscribe(1)
	b.Unsubscribe(sub)

	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing afterwards must not panic or deliver.
	b.Publish(types.EventRecordingStarted, nil)
	assert.Equal(t, 0, b.Stats().Subscribers)

	// Double unsubscribe is harmless.
	b.Unsubscribe(sub)
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	b := newTestBus()

	sub := b.Subscribe(1)
	b.Close()

	_, open := <-sub.Events()
	assert.False(t, open)

	// Publish and Subscribe after Close are no-ops.
	b.Publish(types.EventRecordingStarted, nil)
	late := b.Subscribe(1)
	_, open = <-late.Events()
	assert.False(t, open)
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := newTestBus()
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(types.EventConnectionChange, nil)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				sub := b.Subscribe(2)
				b.Unsubscribe(sub)
			}
		}()
	}
	wg.Wait()

	stats := b.Stats()
	require.Equal(t, uint64(400), stats.Published)
	assert.Equal(t, 0, stats.Subscribers)
}
