package host

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/id"
)

const (
	// DefaultTimeout bounds how long a request may stay pending
	DefaultTimeout = 30 * time.Second
	// DefaultHealthInterval is the pause between health probes
	DefaultHealthInterval = 10 * time.Second
	// PingCommand is the liveness probe understood by every MKD host build
	PingCommand = "PING"
)

// Transport writes request frames toward the native host
type Transport interface {
	Write(msg *Message) error
}

// Status is a point-in-time snapshot of the host channel
type Status struct {
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
	Pending   int    `json:"pending"`
}

// Future is the deferred result of a Send. Every future settles exactly
// once, so awaiting with a background context cannot leak: the request
// timeout guarantees settlement even when the host never answers.
type Future struct {
	resolve chan map[string]interface{}
	reject  chan error
}

func newFuture() *Future {
	return &Future{
		resolve: make(chan map[string]interface{}, 1),
		reject:  make(chan error, 1),
	}
}

// Await blocks until the request settles or ctx is canceled. Cancellation
// abandons the result; the messenger still reclaims the pending entry when
// its timeout fires.
func (f *Future) Await(ctx context.Context) (map[string]interface{}, error) {
	select {
	case data := <-f.resolve:
		return data, nil
	case err := <-f.reject:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type pendingRequest struct {
	future  *Future
	command string
	timer   *time.Timer
	sentAt  time.Time
}

// Option configures a Messenger
type Option func(*Messenger)

// WithTimeout overrides the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(m *Messenger) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithHealthInterval overrides the health probe cadence
func WithHealthInterval(d time.Duration) Option {
	return func(m *Messenger) {
		if d > 0 {
			m.healthInterval = d
		}
	}
}

// WithObserver wires request outcomes into metrics. The callback receives
// the command, an outcome label, and the elapsed seconds. Response frames
// that match no pending request report as outcome "unknown_response" with
// an empty command and zero duration.
func WithObserver(fn func(command, outcome string, seconds float64)) Option {
	return func(m *Messenger) {
		m.observe = fn
	}
}

// Messenger correlates requests to the native host with their responses.
// Each Send registers a pending entry keyed by a unique correlation ID.
// The response, the request timeout, a transport failure, or shutdown
// settles the entry, and removal from the map under the mutex is what
// makes settlement exactly-once: whichever path gets there first wins.
type Messenger struct {
	log            *logging.Logger
	seq            *id.Sequence
	timeout        time.Duration
	healthInterval time.Duration
	observe        func(command, outcome string, seconds float64)

	mu        sync.Mutex
	transport Transport
	pending   map[string]*pendingRequest
	started   bool
	stopped   bool

	connected atomic.Bool
	lastError atomic.Value // string

	handlersMu sync.RWMutex
	onEvent    []func(Event)
	onState    []func(Status)

	healthStop chan struct{}
	healthDone chan struct{}
}

// NewMessenger creates a messenger over the given transport. The transport
// may be nil until Rebind when the caller spawns channels lazily.
func NewMessenger(transport Transport, log *logging.Logger, opts ...Option) *Messenger {
	m := &Messenger{
		log:            log.Named("messenger"),
		seq:            id.NewSequence(),
		timeout:        DefaultTimeout,
		healthInterval: DefaultHealthInterval,
		transport:      transport,
		pending:        make(map[string]*pendingRequest),
		healthStop:     make(chan struct{}),
		healthDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the health probe loop. Safe to call once.
func (m *Messenger) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.healthLoop()
}

// Send writes a request to the host and returns its future. The future is
// already rejected when the messenger is stopped, no transport is bound,
// or the write fails.
func (m *Messenger) Send(command string, params map[string]interface{}) *Future {
	future := newFuture()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		future.reject <- &Error{Code: CodeShuttingDown, Message: "messenger stopped"}
		return future
	}
	transport := m.transport
	msgID := m.seq.Next()
	req := &pendingRequest{future: future, command: command, sentAt: time.Now()}
	req.timer = time.AfterFunc(m.timeout, func() {
		m.expire(msgID, command)
	})
	m.pending[msgID] = req
	m.mu.Unlock()

	if transport == nil {
		m.settle(msgID, nil, &Error{Code: CodeChannel, Message: "no transport bound"})
		return future
	}

	msg := &Message{
		ID:        msgID,
		Command:   command,
		Params:    params,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := transport.Write(msg); err != nil {
		failure := &Error{Code: CodeChannel, Message: "failed to write request", Err: err}
		m.settle(msgID, nil, failure)
		m.markDown(failure)
	}
	return future
}

// Call sends command and waits for the result
func (m *Messenger) Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error) {
	return m.Send(command, params).Await(ctx)
}

// HandleFrame decodes one inbound frame and routes it. Called from the
// channel's read goroutine.
func (m *Messenger) HandleFrame(payload []byte) {
	var resp Response
	if err := Decode(payload, &resp); err != nil {
		m.log.Warn("Discarding undecodable frame",
			zap.Error(err),
			zap.Int("bytes", len(payload)),
		)
		return
	}
	m.HandleResponse(&resp)
}

// HandleResponse settles the pending request a frame answers, or fans a
// frame without an ID out to event subscribers. Responses with unknown IDs
// are logged and dropped; a late reply arriving after its timeout fired
// lands on that path.
func (m *Messenger) HandleResponse(resp *Response) {
	if resp.ID == "" {
		name := resp.Event
		if name == "" {
			name = "message"
		}
		m.dispatchEvent(Event{Name: name, Data: resp.Data})
		m.markUp()
		return
	}

	var settled bool
	switch resp.Status {
	case StatusSuccess:
		settled = m.settle(resp.ID, resp.Data, nil)
	case StatusError:
		message := resp.Error
		if message == "" {
			message = "host reported an unspecified error"
		}
		settled = m.settle(resp.ID, nil, &Error{Code: CodeRemote, Message: message})
	default:
		settled = m.settle(resp.ID, nil, &Error{
			Code:    CodeInvalidResponse,
			Message: fmt.Sprintf("unrecognized status %q", resp.Status),
		})
	}

	if !settled {
		m.log.Debug("Response for unknown request",
			zap.String("id", resp.ID),
			zap.String("status", resp.Status),
		)
		if m.observe != nil {
			m.observe("", "unknown_response", 0)
		}
	}

	// Any frame that arrives proves the channel is alive, error envelopes
	// included.
	m.markUp()
}

// ChannelDown rejects every pending request after the transport fails. The
// messenger stays usable so a reconnect can resume traffic.
func (m *Messenger) ChannelDown(cause error) {
	failure := &Error{Code: CodeChannel, Message: "host channel down", Err: cause}
	m.failAll(failure)
	m.markDown(failure)
}

// Rebind points the messenger at a fresh transport after a reconnect
func (m *Messenger) Rebind(transport Transport) {
	m.mu.Lock()
	m.transport = transport
	m.mu.Unlock()
}

// Stop rejects all pending requests and halts the health loop. Send after
// Stop rejects immediately. Safe to call more than once.
func (m *Messenger) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	close(m.healthStop)

	// Drain before waiting on the loop: an in-flight probe is parked on
	// its future and only returns once rejected.
	m.failAll(&Error{Code: CodeShuttingDown, Message: "messenger stopped"})
	if started {
		<-m.healthDone
	}

	m.connected.Store(false)
	m.log.Info("Messenger stopped")
}

// Status reports the current connection state
func (m *Messenger) Status() Status {
	m.mu.Lock()
	pending := len(m.pending)
	m.mu.Unlock()

	status := Status{Connected: m.connected.Load(), Pending: pending}
	if v := m.lastError.Load(); v != nil {
		status.LastError = v.(string)
	}
	return status
}

// OnEvent registers a handler for unsolicited host pushes. Handlers run on
// the channel's read goroutine and must not block.
func (m *Messenger) OnEvent(fn func(Event)) {
	m.handlersMu.Lock()
	m.onEvent = append(m.onEvent, fn)
	m.handlersMu.Unlock()
}

// OnConnectionChange registers a handler invoked whenever the channel
// flips between connected and disconnected.
func (m *Messenger) OnConnectionChange(fn func(Status)) {
	m.handlersMu.Lock()
	m.onState = append(m.onState, fn)
	m.handlersMu.Unlock()
}

// settle removes msgID from the pending map and fulfills its future.
// Returns false when the entry was already settled by another path.
func (m *Messenger) settle(msgID string, data map[string]interface{}, failure error) bool {
	m.mu.Lock()
	req, ok := m.pending[msgID]
	if ok {
		delete(m.pending, msgID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	req.timer.Stop()
	m.observeOutcome(req, failure)
	if failure != nil {
		req.future.reject <- failure
	} else {
		req.future.resolve <- data
	}
	return true
}

func (m *Messenger) expire(msgID, command string) {
	failure := &Error{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("%s not answered within %s", command, m.timeout),
	}
	if m.settle(msgID, nil, failure) {
		m.log.Warn("Request timed out",
			zap.String("id", msgID),
			zap.String("command", command),
			zap.Duration("timeout", m.timeout),
		)
		m.markDown(failure)
	}
}

func (m *Messenger) failAll(failure *Error) {
	m.mu.Lock()
	drained := m.pending
	m.pending = make(map[string]*pendingRequest)
	m.mu.Unlock()

	for msgID, req := range drained {
		req.timer.Stop()
		req.future.reject <- failure
		m.observeOutcome(req, failure)
		m.log.Debug("Rejected pending request",
			zap.String("id", msgID),
			zap.String("code", string(failure.Code)),
		)
	}
}

func (m *Messenger) observeOutcome(req *pendingRequest, failure error) {
	if m.observe == nil {
		return
	}
	outcome := "success"
	if failure != nil {
		if code := CodeOf(failure); code != "" {
			outcome = strings.ToLower(string(code))
		} else {
			outcome = "error"
		}
	}
	m.observe(req.command, outcome, time.Since(req.sentAt).Seconds())
}

// healthLoop pings the host on a fixed cadence. Probes run strictly one at
// a time: the next delay is armed only after the current probe settles, so
// a slow host never sees stacked probe traffic. Probe failures update the
// connection status but are never propagated.
func (m *Messenger) healthLoop() {
	defer close(m.healthDone)
	for {
		select {
		case <-m.healthStop:
			return
		case <-time.After(m.healthInterval):
		}

		start := time.Now()
		if _, err := m.Send(PingCommand, nil).Await(context.Background()); err != nil {
			m.log.Debug("Health probe failed",
				zap.Error(err),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
	}
}

func (m *Messenger) markUp() {
	if !m.connected.Swap(true) {
		m.log.Info("Host channel connected")
		m.notifyState()
	}
}

func (m *Messenger) markDown(failure error) {
	m.lastError.Store(failure.Error())
	if m.connected.Swap(false) {
		m.log.Warn("Host channel disconnected", zap.Error(failure))
		m.notifyState()
	}
}

func (m *Messenger) notifyState() {
	status := m.Status()
	m.handlersMu.RLock()
	handlers := m.onState
	m.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(status)
	}
}

func (m *Messenger) dispatchEvent(event Event) {
	m.handlersMu.RLock()
	handlers := m.onEvent
	m.handlersMu.RUnlock()

	if len(handlers) == 0 {
		m.log.Debug("Dropping host event with no subscribers", zap.String("event", event.Name))
		return
	}
	for _, fn := range handlers {
		fn(event)
	}
}
