package types

// EventType identifies a broadcast notification on the internal bus
type EventType string

const (
	EventRecordingStarted EventType = "RECORDING_STARTED"
	EventRecordingPaused  EventType = "RECORDING_PAUSED"
	EventRecordingResumed EventType = "RECORDING_RESUMED"
	EventRecordingStopped EventType = "RECORDING_STOPPED"
	EventConnectionChange EventType = "CONNECTION_CHANGED"
	EventHostPush         EventType = "HOST_EVENT"
)

// RecordingState represents recording session lifecycle states
type RecordingState string

const (
	StateRecording RecordingState = "recording"
	StatePaused    RecordingState = "paused"
	StateStopped   RecordingState = "stopped"
	StateFailed    RecordingState = "failed"
)
