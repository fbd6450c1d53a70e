package host

// Response envelope statuses
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// Commands understood by the native host
const (
	StartCommand  = "START_RECORDING"
	StopCommand   = "STOP_RECORDING"
	PauseCommand  = "PAUSE_RECORDING"
	ResumeCommand = "RESUME_RECORDING"
	StatusCommand = "GET_STATUS"
)

// Message is a request frame sent to the native host. ID carries the
// correlation key the host must echo back.
type Message struct {
	ID        string                 `json:"id"`
	Command   string                 `json:"command"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Response is a frame received from the native host. A frame with an ID
// answers a Message; a frame without one is an unsolicited push.
type Response struct {
	ID     string                 `json:"id,omitempty"`
	Status string                 `json:"status,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Error  string                 `json:"error,omitempty"`
	Event  string                 `json:"event,omitempty"`
}

// Event is an unsolicited push from the host
type Event struct {
	Name string
	Data map[string]interface{}
}
