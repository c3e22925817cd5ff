package ycm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/dshills/ycmclient/internal/logging"
	"github.com/dshills/ycmclient/internal/process"
)

// ServerState represents the daemon subprocess lifecycle.
type ServerState int

const (
	// ServerNotStarted indicates the daemon has not been spawned.
	ServerNotStarted ServerState = iota
	// ServerSpawned indicates the daemon is running, port still unknown.
	ServerSpawned
	// ServerPortResolved indicates the daemon's port has been discovered.
	ServerPortResolved
	// ServerTerminated indicates the daemon has been stopped or exited.
	ServerTerminated
)

// String returns a human-readable state name.
func (s ServerState) String() string {
	switch s {
	case ServerNotStarted:
		return "not started"
	case ServerSpawned:
		return "spawned"
	case ServerPortResolved:
		return "port resolved"
	case ServerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// portPattern matches the daemon's port announcement. The daemon picks an
// ephemeral port and announces it asynchronously on stdout.
var portPattern = regexp.MustCompile(`serving on http://127\.0\.0\.1:(\d+)`)

// ServerConfig describes how to launch the completion daemon.
type ServerConfig struct {
	// Command is the daemon executable.
	Command string

	// Args are arguments placed before the generated --options_file flag.
	Args []string

	// Dir is the daemon's working directory.
	Dir string

	// Env are additional environment variables.
	Env map[string]string

	// StopGrace is how long Stop waits after SIGTERM before escalating
	// to SIGKILL. Default: 2 seconds.
	StopGrace time.Duration
}

// ServerProcess manages the completion daemon subprocess: spawn with an
// options file, port discovery from emitted output, and termination.
//
// State machine: NotStarted -> Spawned -> PortResolved -> Terminated.
// The resolved port is cached for the session; the daemon never changes
// port while running.
type ServerProcess struct {
	mu     sync.Mutex
	config ServerConfig
	logger *logging.Logger

	proc  *process.Process
	state ServerState
	port  int
}

// NewServerProcess creates a server process manager (daemon not spawned).
func NewServerProcess(config ServerConfig, logger *logging.Logger) *ServerProcess {
	if config.StopGrace == 0 {
		config.StopGrace = 2 * time.Second
	}
	if logger == nil {
		logger = logging.Null
	}
	return &ServerProcess{
		config: config,
		logger: logger.WithComponent("server"),
	}
}

// Start spawns the daemon with the given options file path.
//
// Start is idempotent: when the daemon is already running it returns nil
// without spawning a second process. It does not block waiting for the
// daemon to become ready; callers poll DiscoverPort or use WaitForPort.
func (s *ServerProcess) Start(optionsFilePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.IsRunning() {
		return nil
	}

	args := make([]string, 0, len(s.config.Args)+1)
	args = append(args, s.config.Args...)
	args = append(args, "--options_file="+optionsFilePath)

	cmd := exec.Command(s.config.Command, args...)
	cmd.Env = os.Environ()
	for k, v := range s.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if s.config.Dir != "" {
		cmd.Dir = s.config.Dir
	}

	proc := process.New("completion-daemon", cmd)
	if err := proc.Start(); err != nil {
		return &ProcessError{Op: "spawn", Err: err}
	}

	s.proc = proc
	s.state = ServerSpawned
	s.port = 0
	s.logger.Info("daemon spawned pid=%d command=%s", proc.PID(), s.config.Command)

	return nil
}

// DiscoverPort scans the daemon's emitted output, backward from the end,
// for its port announcement.
//
// Returns ErrPortNotFound when no announcement is present yet or the
// process is not running. The result is cached: the port cannot change
// for the lifetime of the session, so re-scanning is wasteful.
func (s *ServerProcess) DiscoverPort() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != 0 {
		return s.port, nil
	}

	if s.proc == nil || !s.proc.IsRunning() {
		return 0, ErrPortNotFound
	}

	port, err := scanPort(s.proc.Output())
	if err != nil {
		return 0, err
	}

	s.port = port
	s.state = ServerPortResolved
	s.logger.Info("daemon port resolved port=%d", port)
	return port, nil
}

// scanPort finds the last port announcement in the given output text.
func scanPort(output string) (int, error) {
	matches := portPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, ErrPortNotFound
	}

	// The last announcement wins; earlier ones may be stale restarts.
	last := matches[len(matches)-1]
	port, err := strconv.Atoi(last[1])
	if err != nil || port <= 0 || port > 65535 {
		return 0, ErrPortNotFound
	}
	return port, nil
}

// WaitForPort polls DiscoverPort with backoff until the port is announced,
// ctx is cancelled, or the daemon exits.
func (s *ServerProcess) WaitForPort(ctx context.Context) (int, error) {
	delay := 20 * time.Millisecond
	const maxDelay = 500 * time.Millisecond

	for {
		port, err := s.DiscoverPort()
		if err == nil {
			return port, nil
		}

		s.mu.Lock()
		proc := s.proc
		s.mu.Unlock()

		if proc == nil {
			return 0, ErrProcessNotRunning
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("waiting for daemon port: %w", ctx.Err())
		case <-proc.Done():
			return 0, &ProcessError{
				Op:  "startup",
				Err: fmt.Errorf("daemon exited with code %d before announcing port", proc.ExitCode()),
			}
		case <-time.After(delay):
		}

		if delay < maxDelay {
			delay *= 2
		}
	}
}

// Addr returns the daemon's base address once the port is resolved.
func (s *ServerProcess) Addr() (string, error) {
	port, err := s.DiscoverPort()
	if err != nil {
		return "", err
	}
	return "127.0.0.1:" + strconv.Itoa(port), nil
}

// IsRunning reports whether the daemon process is currently running.
func (s *ServerProcess) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.IsRunning()
}

// State returns the current lifecycle state.
func (s *ServerProcess) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.HasExited() {
		return ServerTerminated
	}
	return s.state
}

// Stop terminates the daemon gracefully, escalating to SIGKILL after the
// configured grace period. Stop is idempotent and never fails when the
// daemon is already gone.
func (s *ServerProcess) Stop() error {
	s.mu.Lock()
	proc := s.proc
	s.state = ServerTerminated
	s.port = 0
	s.mu.Unlock()

	if proc == nil || !proc.IsRunning() {
		return nil
	}

	if err := proc.Terminate(); err != nil {
		// The process may have exited between the check and the signal.
		return nil
	}

	select {
	case <-proc.Done():
	case <-time.After(s.config.StopGrace):
		_ = proc.Kill()
		<-proc.Done()
	}

	s.logger.Info("daemon stopped pid=%d runtime=%s", proc.PID(), proc.Runtime().Round(time.Millisecond))
	return nil
}
