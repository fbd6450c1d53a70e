package recording

import (
	"time"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/types"
)

// Session is a recording session. The ID is issued by the native host
// when recording starts; imported sessions keep the ID they were exported
// with.
type Session struct {
	ID        string                 `json:"id"`
	State     types.RecordingState   `json:"state"`
	StartedAt time.Time              `json:"startedAt"`
	EndedAt   *time.Time             `json:"endedAt,omitempty"`
	URL       string                 `json:"url,omitempty"`
	Actions   []*capture.Action      `json:"actions"`
	Dropped   int                    `json:"dropped,omitempty"`
	Paused    time.Duration          `json:"paused,omitempty"`
	Imported  bool                   `json:"imported,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`

	pausedAt time.Time
}

// Duration returns elapsed recording time, excluding paused stretches
func (s *Session) Duration() time.Duration {
	end := time.Now()
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := end.Sub(s.StartedAt) - s.Paused
	if s.State == types.StatePaused && !s.pausedAt.IsZero() {
		d -= end.Sub(s.pausedAt)
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ActionCount returns the number of stored actions
func (s *Session) ActionCount() int {
	return len(s.Actions)
}

// snapshot returns a copy safe to hand outside the manager.
// Actions are shared pointers; they are immutable once appended.
func (s *Session) snapshot() *Session {
	sessionCopy := *s
	sessionCopy.Actions = make([]*capture.Action, len(s.Actions))
	copy(sessionCopy.Actions, s.Actions)
	return &sessionCopy
}

// Info is the lightweight listing form of a session
type Info struct {
	ID          string               `json:"id"`
	State       types.RecordingState `json:"state"`
	StartedAt   time.Time            `json:"startedAt"`
	EndedAt     *time.Time           `json:"endedAt,omitempty"`
	URL         string               `json:"url,omitempty"`
	ActionCount int                  `json:"actionCount"`
	Imported    bool                 `json:"imported,omitempty"`
}

// info builds the listing form (internal, caller holds the lock)
func (s *Session) info() *Info {
	return &Info{
		ID:          s.ID,
		State:       s.State,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		URL:         s.URL,
		ActionCount: len(s.Actions),
		Imported:    s.Imported,
	}
}

// Summary is returned when a recording stops
type Summary struct {
	SessionID   string                 `json:"sessionId"`
	Duration    time.Duration          `json:"duration"`
	ActionCount int                    `json:"actionCount"`
	Dropped     int                    `json:"dropped,omitempty"`
	ByType      map[string]int         `json:"byType,omitempty"`
	Timing      *Timing                `json:"timing,omitempty"`
	HostData    map[string]interface{} `json:"hostData,omitempty"`
}

// summarize builds the stop summary for a finalized session
func summarize(s *Session, hostData map[string]interface{}) *Summary {
	byType := make(map[string]int, 8)
	for _, action := range s.Actions {
		byType[string(action.Type)]++
	}

	return &Summary{
		SessionID:   s.ID,
		Duration:    s.Duration(),
		ActionCount: len(s.Actions),
		Dropped:     s.Dropped,
		ByType:      byType,
		Timing:      ComputeTiming(s.Actions),
		HostData:    hostData,
	}
}
