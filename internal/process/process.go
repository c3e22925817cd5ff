// Package process provides a managed child-process wrapper with lifecycle
// tracking and bounded capture of the child's combined output.
//
// The completion daemon announces its listening port on stdout, so the
// wrapper tees stdout and stderr into an OutputBuffer that callers can
// scan after spawn.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Sentinel errors for the process package.
var (
	// ErrNotStarted is returned when operations require a started process.
	ErrNotStarted = errors.New("process not started")

	// ErrAlreadyStarted is returned when trying to start an already running process.
	ErrAlreadyStarted = errors.New("process already started")
)

// Process represents a managed child process.
//
// Process wraps an exec.Cmd with lifecycle management, exit tracking,
// and bounded capture of combined stdout/stderr. It is safe for
// concurrent use.
type Process struct {
	// Name is a human-readable name for the process.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	// output captures the child's combined stdout and stderr.
	output *OutputBuffer

	// done is closed when the process exits.
	done chan struct{}

	// state tracks the current process state.
	state atomic.Int32

	// exitCode stores the exit code after the process exits.
	exitCode atomic.Int32

	// exitErr stores any error from Wait().
	exitErr error

	// mu protects exitErr.
	mu sync.RWMutex

	// waitOnce ensures Wait is only called once.
	waitOnce sync.Once
}

// New creates a new Process wrapping the given command.
//
// The command must not be started before calling New; the wrapper wires
// the command's stdout and stderr into its output buffer.
func New(name string, cmd *exec.Cmd) *Process {
	p := &Process{
		Name:   name,
		Cmd:    cmd,
		output: NewOutputBuffer(defaultOutputCap),
		done:   make(chan struct{}),
	}
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1) // -1 indicates not exited
	return p
}

// Start starts the process and begins tracking it.
func (p *Process) Start() error {
	if p.State() != StateCreated {
		return ErrAlreadyStarted
	}

	if err := p.Cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.waitLoop()

	return nil
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code.
// Returns -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
// Returns nil if the process exited successfully or hasn't exited.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited returns true if the process has exited (normally or killed).
func (p *Process) HasExited() bool {
	state := p.State()
	return state == StateExited || state == StateKilled
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Output returns the captured combined stdout/stderr of the child.
// Only the most recent portion is retained; see OutputBuffer.
func (p *Process) Output() string {
	return p.output.String()
}

// Signal sends a signal to the process.
// Returns an error if the process is not running.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() {
		return fmt.Errorf("signal %v: %w", sig, ErrNotStarted)
	}

	if p.Cmd.Process == nil {
		return ErrNotStarted
	}

	return p.Cmd.Process.Signal(sig)
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Runtime returns the duration the process has been running.
// If the process has exited, returns the total runtime.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
					if status.Signaled() {
						state = StateKilled
					}
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// defaultOutputCap bounds captured output. The daemon announces its port
// within the first few lines; the cap only matters for long-lived chatty
// children.
const defaultOutputCap = 64 * 1024

// OutputBuffer is a concurrency-safe writer that retains at most the last
// cap bytes written to it.
type OutputBuffer struct {
	mu  sync.Mutex
	buf []byte
	cap int
}

// NewOutputBuffer creates a buffer retaining at most cap bytes.
func NewOutputBuffer(cap int) *OutputBuffer {
	if cap <= 0 {
		cap = defaultOutputCap
	}
	return &OutputBuffer{cap: cap}
}

// Write implements io.Writer. Writes never fail; old data is discarded
// once the buffer exceeds its capacity.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.cap {
		// Keep the tail; port announcements are scanned backward from
		// the end so the newest output is the interesting part.
		b.buf = b.buf[len(b.buf)-b.cap:]
	}
	return len(p), nil
}

// String returns the currently retained output.
func (b *OutputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// Len returns the number of retained bytes.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

var _ io.Writer = (*OutputBuffer)(nil)
