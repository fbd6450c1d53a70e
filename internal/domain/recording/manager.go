package recording

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
	"go.uber.org/zap"
)

// ErrFiltered marks an action dropped by the URL filters
var ErrFiltered = errors.New("action dropped by url filters")

// ErrNotActive reports a lifecycle call with no active session
var ErrNotActive = errors.New("no active recording")

// ErrAlreadyActive reports Start while a session is live
var ErrAlreadyActive = errors.New("already in progress")

// StateError reports a pause or resume against the wrong session state
type StateError struct {
	Op    string
	State types.RecordingState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s, recording is %s", e.Op, e.State)
}

// Caller issues commands to the native host
type Caller interface {
	Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error)
}

// Publisher broadcasts state transitions
type Publisher interface {
	Publish(eventType types.EventType, data map[string]interface{})
}

// Manager owns at most one active recording session plus a bounded
// history of finished ones. Lifecycle transitions go through the native
// host; the local session is only updated after the host acknowledges.
type Manager struct {
	// opMu serializes lifecycle transitions so host I/O for one
	// transition completes before the next begins
	opMu sync.Mutex

	mu      sync.RWMutex
	active  *Session            // protected by mu
	history []*Session          // protected by mu, oldest first
	byID    map[string]*Session // protected by mu
	evicted int                 // protected by mu

	cfg       config.RecordingConfig
	caller    Caller
	events    Publisher
	sanitizer *capture.Sanitizer
	snaps     *capture.Snapshotter
	assets    *capture.AssetStore
	filter    *URLFilter
	log       *logging.Logger
}

// Stats returns manager counters for the metrics surface
type Stats struct {
	Sessions      int    `json:"sessions"`
	Actions       int    `json:"actions"`
	Dropped       int    `json:"dropped"`
	Evicted       int    `json:"evicted"`
	ActiveSession string `json:"activeSession,omitempty"`
}

// Status describes the current recording state
type Status struct {
	Active      bool                 `json:"active"`
	SessionID   string               `json:"sessionId,omitempty"`
	State       types.RecordingState `json:"state,omitempty"`
	ActionCount int                  `json:"actionCount"`
	StartedAt   *time.Time           `json:"startedAt,omitempty"`
	Sessions    int                  `json:"sessions"`
}

// NewManager creates a recording manager
func NewManager(cfg config.RecordingConfig, redaction []config.Pattern, caller Caller, events Publisher, log *logging.Logger) (*Manager, error) {
	filter, err := NewURLFilter(cfg.URLFilters)
	if err != nil {
		return nil, err
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 20
	}
	if cfg.MaxActions <= 0 {
		cfg.MaxActions = 10000
	}

	return &Manager{
		byID:      make(map[string]*Session),
		cfg:       cfg,
		caller:    caller,
		events:    events,
		sanitizer: capture.NewSanitizer(redaction, cfg.SanitizeInput, log),
		snaps:     capture.NewSnapshotter(),
		assets:    capture.NewAssetStore(cfg.MaxAssetBytes, cfg.MaxAssets),
		filter:    filter,
		log:       log.Named("recording"),
	}, nil
}

// Start begins a new recording session. The session identifier comes from
// the host's START_RECORDING response; a success response without one is
// an error.
func (m *Manager) Start(ctx context.Context, params map[string]interface{}) (*Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	current := m.active
	m.mu.RUnlock()
	if current != nil {
		return nil, fmt.Errorf("recording %s %w", current.ID, ErrAlreadyActive)
	}

	data, err := m.caller.Call(ctx, host.StartCommand, params)
	if err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}

	sessionID, _ := data["sessionId"].(string)
	if sessionID == "" {
		return nil, fmt.Errorf("host did not return a session id")
	}

	session := &Session{
		ID:        sessionID,
		State:     types.StateRecording,
		StartedAt: time.Now(),
		Actions:   make([]*capture.Action, 0, 64),
	}
	if url, ok := params["url"].(string); ok {
		session.URL = url
	}

	m.mu.Lock()
	if stale, exists := m.byID[sessionID]; exists {
		m.removeFromHistory(stale)
		m.log.Warn("Replacing stored session with live recording",
			zap.String("session_id", sessionID))
	}
	m.active = session
	m.byID[sessionID] = session
	snap := session.snapshot()
	m.mu.Unlock()

	m.log.Info("Recording started", zap.String("session_id", sessionID))
	m.events.Publish(types.EventRecordingStarted, map[string]interface{}{
		"sessionId": sessionID,
	})

	return snap, nil
}

// Stop ends the active session and returns its summary. The session is
// finalized locally even when the host call fails, so captured actions
// are never lost to a dead channel.
func (m *Manager) Stop(ctx context.Context) (*Summary, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	session := m.active
	m.mu.RUnlock()
	if session == nil {
		return nil, ErrNotActive
	}

	hostData, callErr := m.caller.Call(ctx, host.StopCommand, map[string]interface{}{
		"sessionId": session.ID,
	})

	now := time.Now()
	m.mu.Lock()
	if session.State == types.StatePaused && !session.pausedAt.IsZero() {
		session.Paused += now.Sub(session.pausedAt)
		session.pausedAt = time.Time{}
	}
	session.EndedAt = &now
	if callErr != nil {
		session.State = types.StateFailed
	} else {
		session.State = types.StateStopped
	}
	m.active = nil
	m.archive(session)
	summary := summarize(session, hostData)
	m.mu.Unlock()

	if callErr != nil {
		m.log.Warn("Host stop failed, session finalized locally",
			zap.String("session_id", session.ID),
			zap.Error(callErr))
		m.events.Publish(types.EventRecordingStopped, map[string]interface{}{
			"sessionId": session.ID,
			"error":     callErr.Error(),
		})
		return nil, fmt.Errorf("stop recording: %w", callErr)
	}

	m.log.Info("Recording stopped",
		zap.String("session_id", session.ID),
		zap.Int("actions", summary.ActionCount),
		zap.Duration("duration", summary.Duration))
	m.events.Publish(types.EventRecordingStopped, map[string]interface{}{
		"sessionId":   session.ID,
		"actionCount": summary.ActionCount,
		"durationMs":  summary.Duration.Milliseconds(),
	})

	return summary, nil
}

// Pause suspends the active session
func (m *Manager) Pause(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	session := m.active
	m.mu.RUnlock()
	if session == nil {
		return ErrNotActive
	}
	if session.State != types.StateRecording {
		return &StateError{Op: "pause", State: session.State}
	}

	if _, err := m.caller.Call(ctx, host.PauseCommand, map[string]interface{}{
		"sessionId": session.ID,
	}); err != nil {
		return fmt.Errorf("pause recording: %w", err)
	}

	m.mu.Lock()
	session.State = types.StatePaused
	session.pausedAt = time.Now()
	m.mu.Unlock()

	m.log.Info("Recording paused", zap.String("session_id", session.ID))
	m.events.Publish(types.EventRecordingPaused, map[string]interface{}{
		"sessionId": session.ID,
	})
	return nil
}

// Resume continues a paused session
func (m *Manager) Resume(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	session := m.active
	m.mu.RUnlock()
	if session == nil {
		return ErrNotActive
	}
	if session.State != types.StatePaused {
		return &StateError{Op: "resume", State: session.State}
	}

	if _, err := m.caller.Call(ctx, host.ResumeCommand, map[string]interface{}{
		"sessionId": session.ID,
	}); err != nil {
		return fmt.Errorf("resume recording: %w", err)
	}

	now := time.Now()
	m.mu.Lock()
	if !session.pausedAt.IsZero() {
		session.Paused += now.Sub(session.pausedAt)
		session.pausedAt = time.Time{}
	}
	session.State = types.StateRecording
	m.mu.Unlock()

	m.log.Info("Recording resumed", zap.String("session_id", session.ID))
	m.events.Publish(types.EventRecordingResumed, map[string]interface{}{
		"sessionId": session.ID,
	})
	return nil
}

// AppendAction validates, sanitizes, and stores a captured action.
// Actions are accepted only while actively recording, never while paused.
func (m *Manager) AppendAction(params map[string]interface{}) (*capture.Action, error) {
	m.mu.RLock()
	session := m.active
	var state types.RecordingState
	if session != nil {
		state = session.State
	}
	m.mu.RUnlock()
	if session == nil {
		return nil, fmt.Errorf("no active recording")
	}
	if state != types.StateRecording {
		return nil, fmt.Errorf("recording is %s", state)
	}

	action, err := capture.FromParams(params)
	if err != nil {
		return nil, err
	}

	if !m.filter.Allowed(action.URL) {
		m.mu.Lock()
		session.Dropped++
		m.mu.Unlock()
		return nil, ErrFiltered
	}

	if action.Type == capture.ActionScript {
		if _, err := goja.Compile("step", action.Value, false); err != nil {
			return nil, fmt.Errorf("invalid script step: %w", err)
		}
	}

	m.sanitizer.ScrubAction(action)

	if action.Snapshot != "" {
		clean, err := m.snaps.Sanitize(action.Snapshot)
		if err != nil {
			m.log.Debug("Dropping snapshot", zap.Error(err))
			action.Snapshot = ""
		} else {
			action.Snapshot = clean
			if action.Target != nil && action.Target.Selector == "" && action.Target.XPath == "" {
				if loc, err := m.snaps.DeriveLocator(clean, action.Target); err == nil {
					action.Target.Selector = loc.CSS
					action.Target.XPath = loc.XPath
				}
			}
		}
	}

	if encoded, ok := params["screenshot"].(string); ok && encoded != "" {
		content, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode screenshot: %w", err)
		}
		asset, err := m.assets.Ingest(session.ID, content)
		if err != nil {
			return nil, fmt.Errorf("ingest screenshot: %w", err)
		}
		action.AssetID = asset.ID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != session || session.State != types.StateRecording {
		return nil, fmt.Errorf("recording is no longer active")
	}
	if len(session.Actions) >= m.cfg.MaxActions {
		return nil, fmt.Errorf("action limit of %d reached", m.cfg.MaxActions)
	}
	session.Actions = append(session.Actions, action)

	return action, nil
}

// Status returns the current recording state
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{Sessions: len(m.byID)}
	if m.active != nil {
		startedAt := m.active.StartedAt
		status.Active = true
		status.SessionID = m.active.ID
		status.State = m.active.State
		status.ActionCount = len(m.active.Actions)
		status.StartedAt = &startedAt
	}
	return status
}

// Get retrieves a session by ID
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.byID[sessionID]
	if !ok {
		return nil, false
	}
	return session.snapshot(), true
}

// List returns session listings, most recent first, active session on top
func (m *Manager) List() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*Info, 0, len(m.byID))
	if m.active != nil {
		infos = append(infos, m.active.info())
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		infos = append(infos, m.history[i].info())
	}
	return infos
}

// Delete removes a finished session and its assets.
// The active session cannot be deleted; stop it first.
func (m *Manager) Delete(sessionID string) error {
	m.mu.Lock()
	session, ok := m.byID[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("session %s not found", sessionID)
	}
	if m.active == session {
		m.mu.Unlock()
		return fmt.Errorf("cannot delete the active recording")
	}
	m.removeFromHistory(session)
	m.mu.Unlock()

	m.assets.PruneSession(sessionID)
	m.log.Info("Session deleted", zap.String("session_id", sessionID))
	return nil
}

// Stats returns manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Sessions: len(m.byID),
		Evicted:  m.evicted,
	}
	for _, session := range m.byID {
		stats.Actions += len(session.Actions)
		stats.Dropped += session.Dropped
	}
	if m.active != nil {
		stats.ActiveSession = m.active.ID
	}
	return stats
}

// Assets exposes the screenshot store for the API layer
func (m *Manager) Assets() *capture.AssetStore {
	return m.assets
}

// Sanitizer exposes the active sanitizer for the settings surface
func (m *Manager) Sanitizer() *capture.Sanitizer {
	return m.sanitizer
}

// archive moves a finished session into history, evicting the oldest
// beyond the configured bound (internal, must hold mu)
func (m *Manager) archive(session *Session) {
	m.history = append(m.history, session)
	for len(m.history) > m.cfg.MaxSessions {
		oldest := m.history[0]
		m.history = m.history[1:]
		delete(m.byID, oldest.ID)
		m.evicted++
		m.assets.PruneSession(oldest.ID)
	}
}

// removeFromHistory drops a session from both indexes (internal, must
// hold mu)
func (m *Manager) removeFromHistory(session *Session) {
	delete(m.byID, session.ID)
	for i, s := range m.history {
		if s == session {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
}
