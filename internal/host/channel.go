package host

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/logging"
)

// Channel owns a native host process and frames messages over its stdio.
// Writes are serialized under a mutex; reads happen on a dedicated
// goroutine that hands raw frames to the sink.
type Channel struct {
	log    *logging.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	writeMu sync.Mutex

	onFrame func([]byte)
	onDown  func(error)

	closed atomic.Bool
	done   chan struct{}
}

// NewChannel prepares a channel for the given host command. Start must be
// called before the first Write.
func NewChannel(command string, args []string, log *logging.Logger) *Channel {
	return &Channel{
		log:  log.Named("channel"),
		cmd:  exec.Command(command, args...),
		done: make(chan struct{}),
	}
}

// OnFrame registers the sink for inbound frames. Must be set before Start.
func (c *Channel) OnFrame(fn func([]byte)) {
	c.onFrame = fn
}

// OnDown registers the callback invoked once when the channel fails or the
// host process exits. Must be set before Start.
func (c *Channel) OnDown(fn func(error)) {
	c.onDown = fn
}

// Start spawns the host process and begins the read loops
func (c *Channel) Start() error {
	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start host process: %w", err)
	}
	c.stdin, c.stdout, c.stderr = stdin, stdout, stderr

	c.log.Info("Native host started",
		zap.String("command", c.cmd.Path),
		zap.Int("pid", c.cmd.Process.Pid),
	)

	go c.readLoop()
	go c.stderrLoop()
	return nil
}

// Write encodes msg and frames it onto the host's stdin
func (c *Channel) Write(msg *Message) error {
	if c.closed.Load() {
		return fmt.Errorf("channel closed")
	}
	payload, err := Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.stdin, payload); err != nil {
		return fmt.Errorf("write to host: %w", err)
	}
	return nil
}

// Close shuts the channel down. Closing stdin signals a well-behaved host
// to exit; the process is killed if it lingers.
func (c *Channel) Close() error {
	return c.shutdown(nil)
}

// Done is closed when the channel has fully shut down
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// PID returns the host process ID, or 0 before Start
func (c *Channel) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

func (c *Channel) readLoop() {
	reader := bufio.NewReaderSize(c.stdout, 64*1024)
	for {
		payload, err := ReadFrame(reader)
		if err != nil {
			if err == io.EOF {
				err = fmt.Errorf("host closed the pipe")
			}
			c.fail(err)
			return
		}
		if c.onFrame != nil {
			c.onFrame(payload)
		}
	}
}

func (c *Channel) stderrLoop() {
	scanner := bufio.NewScanner(c.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		c.log.Debug("Host stderr", zap.String("line", scanner.Text()))
	}
}

func (c *Channel) fail(cause error) {
	c.shutdown(cause)
}

// shutdown reaps the process exactly once. Both the clean Close path and
// the read-failure path land here; whichever arrives second is a no-op.
func (c *Channel) shutdown(cause error) error {
	if c.closed.Swap(true) {
		return nil
	}
	defer close(c.done)

	if c.stdin != nil {
		c.stdin.Close()
	}

	// Give the host a moment to exit on its own before killing it.
	waited := make(chan error, 1)
	go func() { waited <- c.cmd.Wait() }()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		if c.cmd.Process != nil {
			c.cmd.Process.Kill()
		}
		<-waited
	}

	if cause != nil {
		c.log.Warn("Native host channel down", zap.Error(cause))
		if c.onDown != nil {
			c.onDown(cause)
		}
	} else {
		c.log.Info("Native host stopped")
	}
	return nil
}
