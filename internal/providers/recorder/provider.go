package recorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/recording"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// Provider exposes recording session control as registry tools
type Provider struct {
	manager *recording.Manager
	observe func(outcome string)
}

// Option configures the provider
type Option func(*Provider)

// WithObserver wires action capture outcomes into metrics. The callback
// receives "recorded" or "dropped" per accepted capture.
func WithObserver(fn func(outcome string)) Option {
	return func(p *Provider) {
		p.observe = fn
	}
}

// NewProvider creates a recorder provider
func NewProvider(manager *recording.Manager, opts ...Option) *Provider {
	p := &Provider{manager: manager}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "recorder",
		Name:        "Recorder Service",
		Description: "Browser interaction recording lifecycle and capture",
		Category:    types.CategoryRecording,
		Capabilities: []string{
			"start_recording",
			"stop_recording",
			"pause_resume",
			"action_capture",
			"session_history",
		},
		Tools: []types.Tool{
			{
				ID:          "recorder.start",
				Name:        "Start Recording",
				Description: "Begin a new recording session",
				Parameters: []types.Parameter{
					{Name: "url", Type: "string", Description: "Page the recording starts on", Required: false},
					{Name: "name", Type: "string", Description: "Display name for the session", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "recorder.stop",
				Name:        "Stop Recording",
				Description: "End the active session and return its summary",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "recorder.pause",
				Name:        "Pause Recording",
				Description: "Pause the active session",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "recorder.resume",
				Name:        "Resume Recording",
				Description: "Resume a paused session",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "recorder.action",
				Name:        "Capture Action",
				Description: "Append a captured user action to the active session",
				Parameters: []types.Parameter{
					{Name: "type", Type: "string", Description: "Action type (click/input/scroll/...)", Required: true},
					{Name: "url", Type: "string", Description: "Page URL at capture time", Required: false},
					{Name: "target", Type: "object", Description: "Element the action applies to", Required: false},
					{Name: "value", Type: "string", Description: "Typed or selected value", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "recorder.status",
				Name:        "Recording Status",
				Description: "Current recording state",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "recorder.list",
				Name:        "List Sessions",
				Description: "List stored sessions, active first",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
			{
				ID:          "recorder.get",
				Name:        "Get Session",
				Description: "Fetch a stored session with its actions",
				Parameters: []types.Parameter{
					{Name: "session_id", Type: "string", Description: "Session identifier", Required: true},
				},
				Returns: "object",
			},
			{
				ID:          "recorder.delete",
				Name:        "Delete Session",
				Description: "Remove a stored session and its assets",
				Parameters: []types.Parameter{
					{Name: "session_id", Type: "string", Description: "Session identifier", Required: true},
				},
				Returns: "object",
			},
		},
		DataModels: []types.DataModel{
			{
				Name: "session",
				Fields: map[string]string{
					"id":        "string",
					"state":     "string",
					"startedAt": "timestamp",
					"url":       "string",
					"actions":   "action[]",
				},
			},
			{
				Name: "action",
				Fields: map[string]string{
					"id":        "string",
					"type":      "string",
					"timestamp": "int64",
					"target":    "object",
					"value":     "string",
				},
			},
		},
	}
}

// Execute runs a recorder operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "recorder.start":
		return p.start(ctx, params)
	case "recorder.stop":
		return p.stop(ctx)
	case "recorder.pause":
		return p.pause(ctx)
	case "recorder.resume":
		return p.resume(ctx)
	case "recorder.action":
		return p.action(params)
	case "recorder.status":
		return p.status()
	case "recorder.list":
		return p.list()
	case "recorder.get":
		return p.get(params)
	case "recorder.delete":
		return p.delete(params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) start(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	session, err := p.manager.Start(ctx, params)
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{
		"sessionId": session.ID,
		"state":     string(session.State),
		"startedAt": session.StartedAt,
	})
}

func (p *Provider) stop(ctx context.Context) (*types.Result, error) {
	summary, err := p.manager.Stop(ctx)
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"summary": summary})
}

func (p *Provider) pause(ctx context.Context) (*types.Result, error) {
	if err := p.manager.Pause(ctx); err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"state": string(types.StatePaused)})
}

func (p *Provider) resume(ctx context.Context) (*types.Result, error) {
	if err := p.manager.Resume(ctx); err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"state": string(types.StateRecording)})
}

func (p *Provider) action(params map[string]interface{}) (*types.Result, error) {
	action, err := p.manager.AppendAction(params)
	if err != nil {
		// Filtered pages are expected, not an error the UI should surface
		if errors.Is(err, recording.ErrFiltered) {
			if p.observe != nil {
				p.observe("dropped")
			}
			return success(map[string]interface{}{"dropped": true})
		}
		return failure(err.Error())
	}
	if p.observe != nil {
		p.observe("recorded")
	}
	return success(map[string]interface{}{
		"actionId": action.ID.String(),
		"type":     string(action.Type),
		"masked":   action.Masked,
	})
}

func (p *Provider) status() (*types.Result, error) {
	return success(map[string]interface{}{"status": p.manager.Status()})
}

func (p *Provider) list() (*types.Result, error) {
	sessions := p.manager.List()
	return success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (p *Provider) get(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok || sessionID == "" {
		return failure("session_id parameter required")
	}

	session, ok := p.manager.Get(sessionID)
	if !ok {
		return failure(fmt.Sprintf("session not found: %s", sessionID))
	}
	return success(map[string]interface{}{"session": session})
}

func (p *Provider) delete(params map[string]interface{}) (*types.Result, error) {
	sessionID, ok := params["session_id"].(string)
	if !ok || sessionID == "" {
		return failure("session_id parameter required")
	}

	if err := p.manager.Delete(sessionID); err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"deleted": sessionID})
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	return &types.Result{Success: false, Error: &message}, nil
}
