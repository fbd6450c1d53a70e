package recording

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	mu       sync.Mutex
	commands []string
	params   []map[string]interface{}
	handlers map[string]func(params map[string]interface{}) (map[string]interface{}, error)
	sessions int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		handlers: make(map[string]func(map[string]interface{}) (map[string]interface{}, error)),
	}
}

func (f *fakeCaller) Call(_ context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, command)
	f.params = append(f.params, params)

	if handler, ok := f.handlers[command]; ok {
		return handler(params)
	}
	if command == host.StartCommand {
		f.sessions++
		return map[string]interface{}{"sessionId": fmt.Sprintf("host-%d", f.sessions)}, nil
	}
	return map[string]interface{}{}, nil
}

func (f *fakeCaller) respond(command string, handler func(map[string]interface{}) (map[string]interface{}, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[command] = handler
}

func (f *fakeCaller) fail(command string, err error) {
	f.respond(command, func(map[string]interface{}) (map[string]interface{}, error) {
		return nil, err
	})
}

func (f *fakeCaller) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	copy(out, f.commands)
	return out
}

func (f *fakeCaller) lastParams() map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.params) == 0 {
		return nil
	}
	return f.params[len(f.params)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []types.EventType
}

func (p *fakePublisher) Publish(eventType types.EventType, _ map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) seen() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EventType, len(p.events))
	copy(out, p.events)
	return out
}

func newTestManager(t *testing.T, cfg config.RecordingConfig) (*Manager, *fakeCaller, *fakePublisher) {
	t.Helper()
	caller := newFakeCaller()
	events := &fakePublisher{}
	m, err := NewManager(cfg, nil, caller, events, logging.NewNop())
	require.NoError(t, err)
	return m, caller, events
}

func defaultCfg() config.RecordingConfig {
	return config.RecordingConfig{
		MaxSessions:   20,
		MaxActions:    10000,
		SanitizeInput: true,
		MaxAssetBytes: 1024 * 1024,
		MaxAssets:     10,
	}
}

func clickParams(url string) map[string]interface{} {
	return map[string]interface{}{
		"type": "click",
		"url":  url,
		"target": map[string]interface{}{
			"tag":  "button",
			"text": "Go",
		},
	}
}

func TestStartRecording(t *testing.T) {
	m, caller, events := newTestManager(t, defaultCfg())

	session, err := m.Start(context.Background(), map[string]interface{}{"url": "https://example.com"})
	require.NoError(t, err)

	assert.Equal(t, "host-1", session.ID)
	assert.Equal(t, types.StateRecording, session.State)
	assert.Equal(t, "https://example.com", session.URL)

	assert.Equal(t, []string{host.StartCommand}, caller.calls())
	assert.Equal(t, []types.EventType{types.EventRecordingStarted}, events.seen())

	status := m.Status()
	assert.True(t, status.Active)
	assert.Equal(t, "host-1", status.SessionID)
	assert.Equal(t, types.StateRecording, status.State)
}

func TestStartWhileActive(t *testing.T) {
	m, caller, _ := newTestManager(t, defaultCfg())

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
	assert.Len(t, caller.calls(), 1, "second start must not reach the host")
}

func TestStartMissingSessionID(t *testing.T) {
	m, caller, _ := newTestManager(t, defaultCfg())
	caller.respond(host.StartCommand, func(map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"ok": true}, nil
	})

	_, err := m.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session id")
	assert.False(t, m.Status().Active)
}

func TestStartHostError(t *testing.T) {
	m, caller, events := newTestManager(t, defaultCfg())
	caller.fail(host.StartCommand, errors.New("CHANNEL_ERROR: pipe closed"))

	_, err := m.Start(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, m.Status().Active)
	assert.Empty(t, events.seen())
}

func TestStopLifecycle(t *testing.T) {
	m, caller, events := newTestManager(t, defaultCfg())

	session, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		params := clickParams("https://example.com")
		params["timestamp"] = float64(1700000000000 + i*100)
		_, err := m.AppendAction(params)
		require.NoError(t, err)
	}

	summary, err := m.Stop(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.ID, summary.SessionID)
	assert.Equal(t, 3, summary.ActionCount)
	assert.Equal(t, 3, summary.ByType["click"])
	require.NotNil(t, summary.Timing)
	assert.InDelta(t, 100, summary.Timing.MeanGapMs, 0.001)

	assert.Equal(t, []string{host.StartCommand, host.StopCommand}, caller.calls())
	assert.Equal(t, session.ID, caller.lastParams()["sessionId"])

	assert.False(t, m.Status().Active)
	stored, ok := m.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, types.StateStopped, stored.State)
	assert.NotNil(t, stored.EndedAt)

	assert.Equal(t, []types.EventType{types.EventRecordingStarted, types.EventRecordingStopped}, events.seen())
}

func TestStopWithoutActive(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active recording")
}

func TestStopHostErrorFinalizesLocally(t *testing.T) {
	m, caller, _ := newTestManager(t, defaultCfg())

	session, err := m.Start(context.Background(), nil)
	require.NoError(t, err)
	_, err = m.AppendAction(clickParams(""))
	require.NoError(t, err)

	caller.fail(host.StopCommand, errors.New("TIMEOUT: STOP_RECORDING not answered"))

	_, err = m.Stop(context.Background())
	require.Error(t, err)

	// The session is finalized locally so captured actions survive
	assert.False(t, m.Status().Active)
	stored, ok := m.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, types.StateFailed, stored.State)
	assert.Equal(t, 1, stored.ActionCount())
}

func TestPauseResumeGuards(t *testing.T) {
	m, _, events := newTestManager(t, defaultCfg())
	ctx := context.Background()

	require.Error(t, m.Pause(ctx), "pause without active session")
	require.Error(t, m.Resume(ctx), "resume without active session")

	_, err := m.Start(ctx, nil)
	require.NoError(t, err)

	require.Error(t, m.Resume(ctx), "resume while recording")

	require.NoError(t, m.Pause(ctx))
	assert.Equal(t, types.StatePaused, m.Status().State)

	require.Error(t, m.Pause(ctx), "pause while already paused")

	_, err = m.AppendAction(clickParams(""))
	require.Error(t, err, "actions rejected while paused")

	require.NoError(t, m.Resume(ctx))
	assert.Equal(t, types.StateRecording, m.Status().State)

	_, err = m.AppendAction(clickParams(""))
	require.NoError(t, err)

	assert.Equal(t, []types.EventType{
		types.EventRecordingStarted,
		types.EventRecordingPaused,
		types.EventRecordingResumed,
	}, events.seen())
}

func TestPauseHostErrorKeepsState(t *testing.T) {
	m, caller, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	_, err := m.Start(ctx, nil)
	require.NoError(t, err)

	caller.fail(host.PauseCommand, errors.New("REMOTE_ERROR: busy"))
	require.Error(t, m.Pause(ctx))
	assert.Equal(t, types.StateRecording, m.Status().State)
}

func TestAppendActionValidation(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.AppendAction(clickParams(""))
	require.Error(t, err, "append without active session")

	_, err = m.Start(context.Background(), nil)
	require.NoError(t, err)

	action, err := m.AppendAction(clickParams("https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, capture.ActionClick, action.Type)
	assert.Equal(t, 1, m.Status().ActionCount)

	_, err = m.AppendAction(map[string]interface{}{"type": "teleport"})
	require.Error(t, err)
	assert.Equal(t, 1, m.Status().ActionCount)
}

func TestAppendActionSanitizes(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	action, err := m.AppendAction(map[string]interface{}{
		"type":  "input",
		"value": "hunter2",
		"target": map[string]interface{}{
			"tag":        "input",
			"attributes": map[string]interface{}{"type": "password"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, capture.MaskText, action.Value)
	assert.True(t, action.Masked)
}

func TestAppendActionURLFilter(t *testing.T) {
	cfg := defaultCfg()
	cfg.URLFilters = []string{"https://app.example.com/**"}
	m, _, _ := newTestManager(t, cfg)

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.AppendAction(clickParams("https://app.example.com/checkout"))
	require.NoError(t, err)

	_, err = m.AppendAction(clickParams("https://other.com/page"))
	require.ErrorIs(t, err, ErrFiltered)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Actions)
	assert.Equal(t, 1, stats.Dropped)
}

func TestAppendActionScriptValidation(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.AppendAction(map[string]interface{}{
		"type":  "script",
		"value": "window.scrollTo(0, document.body.scrollHeight)",
	})
	require.NoError(t, err)

	_, err = m.AppendAction(map[string]interface{}{
		"type":  "script",
		"value": "function (",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid script step")
}

func TestAppendActionLimit(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxActions = 2
	m, _, _ := newTestManager(t, cfg)

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	_, err = m.AppendAction(clickParams(""))
	require.NoError(t, err)
	_, err = m.AppendAction(clickParams(""))
	require.NoError(t, err)

	_, err = m.AppendAction(clickParams(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action limit")
}

func TestAppendActionScreenshot(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, []byte("frame")...)
	params := clickParams("")
	params["type"] = "screenshot"
	params["screenshot"] = base64.StdEncoding.EncodeToString(png)

	action, err := m.AppendAction(params)
	require.NoError(t, err)
	require.NotEmpty(t, action.AssetID)

	asset, ok := m.Assets().Get(action.AssetID)
	require.True(t, ok)
	assert.Equal(t, "image/png", asset.MIME)

	bad := clickParams("")
	bad["screenshot"] = "not-base64!!!"
	_, err = m.AppendAction(bad)
	require.Error(t, err)

	text := clickParams("")
	text["screenshot"] = base64.StdEncoding.EncodeToString([]byte("plain text payload"))
	_, err = m.AppendAction(text)
	require.Error(t, err)
}

func TestAppendActionSnapshotLocator(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())

	_, err := m.Start(context.Background(), nil)
	require.NoError(t, err)

	params := map[string]interface{}{
		"type":     "click",
		"snapshot": `<form><script>evil()</script><input id="email" type="text"></form>`,
		"target": map[string]interface{}{
			"tag":        "input",
			"attributes": map[string]interface{}{"id": "email"},
		},
	}
	action, err := m.AppendAction(params)
	require.NoError(t, err)

	assert.NotContains(t, action.Snapshot, "script")
	assert.Contains(t, action.Snapshot, `id="email"`)
	require.NotNil(t, action.Target)
	assert.Equal(t, "#email", action.Target.Selector)
	assert.Equal(t, "//*[@id='email']", action.Target.XPath)
}

func TestHistoryEviction(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxSessions = 2
	m, _, _ := newTestManager(t, cfg)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		session, err := m.Start(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, session.ID)
		_, err = m.Stop(ctx)
		require.NoError(t, err)
	}

	stats := m.Stats()
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 1, stats.Evicted)

	_, ok := m.Get(ids[0])
	assert.False(t, ok, "oldest session should be evicted")
	_, ok = m.Get(ids[2])
	assert.True(t, ok)

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, ids[2], infos[0].ID)
	assert.Equal(t, ids[1], infos[1].ID)
}

func TestDeleteSession(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	session, err := m.Start(ctx, nil)
	require.NoError(t, err)

	require.Error(t, m.Delete(session.ID), "active session cannot be deleted")

	_, err = m.Stop(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Delete(session.ID))
	_, ok := m.Get(session.ID)
	assert.False(t, ok)

	require.Error(t, m.Delete(session.ID), "double delete")
	require.Error(t, m.Delete("missing"))
}

func TestInvalidURLFilterRejectedAtConstruction(t *testing.T) {
	cfg := defaultCfg()
	cfg.URLFilters = []string{"https://[invalid"}

	_, err := NewManager(cfg, nil, newFakeCaller(), &fakePublisher{}, logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url filter")
}
