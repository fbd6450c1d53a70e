package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// Link is the host channel surface this provider controls
type Link interface {
	Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error)
	Status() host.Status
	Reconnect() error
}

// Publisher broadcasts connection transitions
type Publisher interface {
	Publish(eventType types.EventType, data map[string]interface{})
}

// Provider exposes host connection state and control as registry tools
type Provider struct {
	link   Link
	events Publisher
}

// NewProvider creates a connection provider
func NewProvider(link Link, events Publisher) *Provider {
	return &Provider{link: link, events: events}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "connection",
		Name:        "Connection Service",
		Description: "Native host channel state and control",
		Category:    types.CategoryConnection,
		Capabilities: []string{
			"status",
			"ping",
			"reconnect",
		},
		Tools: []types.Tool{
			{
				ID:          "connection.status",
				Name:        "Connection Status",
				Description: "Current host channel state",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "connection.ping",
				Name:        "Ping Host",
				Description: "Round-trip the host channel and report latency",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "connection.reconnect",
				Name:        "Reconnect Host",
				Description: "Tear down and respawn the native host process",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a connection operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "connection.status":
		return p.status()
	case "connection.ping":
		return p.ping(ctx)
	case "connection.reconnect":
		return p.reconnect()
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) status() (*types.Result, error) {
	st := p.link.Status()
	return success(map[string]interface{}{
		"connected": st.Connected,
		"pending":   st.Pending,
		"lastError": st.LastError,
	})
}

func (p *Provider) ping(ctx context.Context) (*types.Result, error) {
	start := time.Now()
	data, err := p.link.Call(ctx, host.PingCommand, nil)
	if err != nil {
		return failure(fmt.Sprintf("ping failed: %v", err))
	}

	return success(map[string]interface{}{
		"latencyMs": time.Since(start).Milliseconds(),
		"host":      data,
	})
}

func (p *Provider) reconnect() (*types.Result, error) {
	if err := p.link.Reconnect(); err != nil {
		return failure(fmt.Sprintf("reconnect failed: %v", err))
	}

	st := p.link.Status()
	p.events.Publish(types.EventConnectionChange, map[string]interface{}{
		"connected": st.Connected,
		"reason":    "manual reconnect",
	})
	return success(map[string]interface{}{"connected": st.Connected})
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	return &types.Result{Success: false, Error: &message}, nil
}
