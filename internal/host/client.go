package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/resilience"
)

// Client runs the native host process behind a Messenger and can respawn
// it when the channel fails. Reconnects happen only when a caller asks for
// one; the circuit breaker keeps a crash-looping host binary from being
// respawned in a tight loop.
type Client struct {
	log     *logging.Logger
	cfg     config.HostConfig
	m       *Messenger
	breaker *resilience.Breaker

	mu sync.Mutex
	ch *Channel
}

// NewClient builds the messenger stack for the configured host binary
func NewClient(cfg config.HostConfig, log *logging.Logger, opts ...Option) *Client {
	hostLog := log.Named("host")
	c := &Client{
		log: hostLog,
		cfg: cfg,
		breaker: resilience.New("host-spawn", resilience.Settings{
			MaxRequests: 1,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to resilience.State) {
				hostLog.Warn("Spawn breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}

	base := []Option{
		WithTimeout(cfg.RequestTimeout),
		WithHealthInterval(cfg.HealthInterval),
	}
	c.m = NewMessenger(nil, log, append(base, opts...)...)
	return c
}

// Start spawns the host process and begins health probing
func (c *Client) Start() error {
	if err := c.connect(); err != nil {
		return err
	}
	c.m.Start()
	return nil
}

// Reconnect tears down the current channel and spawns a fresh host
// process. The breaker turns repeated spawn failures into fast rejections
// until its timeout elapses.
func (c *Client) Reconnect() error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.connect()
	})
	return err
}

// Messenger exposes the request API
func (c *Client) Messenger() *Messenger {
	return c.m
}

// Call issues a command through the messenger
func (c *Client) Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	return c.m.Call(ctx, command, params)
}

// Status reports the current connection state
func (c *Client) Status() Status {
	return c.m.Status()
}

// Close stops the messenger and reaps the host process
func (c *Client) Close() error {
	c.m.Stop()

	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()

	if ch != nil {
		return ch.Close()
	}
	return nil
}

func (c *Client) connect() error {
	ch := NewChannel(c.cfg.Command, c.cfg.Args, c.log)
	ch.OnFrame(c.m.HandleFrame)
	ch.OnDown(c.m.ChannelDown)
	if err := ch.Start(); err != nil {
		return fmt.Errorf("failed to spawn host %q: %w", c.cfg.Command, err)
	}

	c.mu.Lock()
	old := c.ch
	c.ch = ch
	c.mu.Unlock()

	c.m.Rebind(ch)
	if old != nil {
		old.Close()
	}
	return nil
}
