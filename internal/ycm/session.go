package ycm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/ycmclient/internal/config"
	"github.com/dshills/ycmclient/internal/logging"
)

// SessionState represents the session lifecycle.
type SessionState int

const (
	// SessionStopped indicates no session is active.
	SessionStopped SessionState = iota
	// SessionStarting indicates the daemon is spawned, port not yet known.
	SessionStarting
	// SessionRunning indicates the session is ready for requests.
	SessionRunning
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case SessionStopped:
		return "stopped"
	case SessionStarting:
		return "starting"
	case SessionRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Session owns one daemon session: the shared secret, the subprocess, and
// the signed HTTP request/response protocol.
//
// Lifecycle is explicit: Start spawns the daemon and provisions the
// secret, WaitReady resolves the port, Stop tears both down. A secret and
// server address exist exactly while the session is running; both are
// invalidated together on Stop.
type Session struct {
	mu    sync.Mutex
	state SessionState

	secrets *SecretStore
	server  *ServerProcess
	client  *http.Client
	logger  *logging.Logger

	optionsFile     string // user's options file path
	tempOptionsFile string // generated copy carrying the session secret

	requestTimeout time.Duration
}

// SessionOption configures a session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithHTTPClient sets the HTTP client used for daemon requests.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		s.client = c
	}
}

// WithRequestTimeout bounds fire-and-forget posts that carry no caller
// context.
func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.requestTimeout = d
	}
}

// NewSession creates a session for the given daemon configuration.
// The daemon is not spawned until Start.
func NewSession(server ServerConfig, optionsFile string, opts ...SessionOption) *Session {
	s := &Session{
		state:          SessionStopped,
		secrets:        NewSecretStore(),
		optionsFile:    optionsFile,
		client:         &http.Client{},
		logger:         logging.Null,
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = NewServerProcess(server, s.logger)
	return s
}

// NewSessionFromConfig creates a session from a loaded client config.
func NewSessionFromConfig(cfg config.Config, opts ...SessionOption) *Session {
	server := ServerConfig{
		Command: cfg.Server.Command,
		Args:    cfg.Server.Args,
		Dir:     cfg.Server.Dir,
	}
	opts = append([]SessionOption{WithRequestTimeout(cfg.RequestTimeout())}, opts...)
	return NewSession(server, cfg.Server.OptionsFile, opts...)
}

// Start provisions the session secret and spawns the daemon.
//
// The user's options file is loaded, its hmac_secret field is overwritten
// with the base64 session secret, and the result is written to a private
// temp file handed to the daemon. Start returns once the daemon is
// spawned; it does not wait for the port announcement. Any failure aborts
// the startup attempt and leaves the session stopped.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionStopped {
		return ErrAlreadyStarted
	}

	if _, err := s.secrets.Generate(); err != nil {
		return err
	}

	tempPath, err := s.writeOptionsFileLocked()
	if err != nil {
		s.secrets.Clear()
		return err
	}

	if err := s.server.Start(tempPath); err != nil {
		s.secrets.Clear()
		_ = os.Remove(tempPath)
		return err
	}

	s.tempOptionsFile = tempPath
	s.state = SessionStarting
	return nil
}

// writeOptionsFileLocked builds the daemon options file: the user's JSON
// with hmac_secret replaced by the session secret. Must hold mu.
func (s *Session) writeOptionsFileLocked() (string, error) {
	data, err := os.ReadFile(s.optionsFile)
	if err != nil {
		return "", &config.Error{Field: "server.options_file", Message: "reading options file", Err: err}
	}
	if !gjson.ValidBytes(data) {
		return "", &config.Error{Field: "server.options_file", Message: fmt.Sprintf("%s is not valid JSON", s.optionsFile)}
	}

	secret, err := s.secrets.Base64()
	if err != nil {
		return "", err
	}

	// sjson preserves every other daemon setting untouched.
	data, err = sjson.SetBytes(data, "hmac_secret", secret)
	if err != nil {
		return "", fmt.Errorf("embedding session secret: %w", err)
	}

	path := filepath.Join(os.TempDir(), "ycm_options_"+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing options file: %w", err)
	}
	return path, nil
}

// WaitReady blocks until the daemon announces its port, then marks the
// session running.
func (s *Session) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case SessionStopped:
		return ErrSessionNotRunning
	case SessionRunning:
		return nil
	}

	if _, err := s.server.WaitForPort(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == SessionStarting {
		s.state = SessionRunning
	}
	s.mu.Unlock()
	return nil
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Call issues a signed POST to the daemon and parses the JSON response.
//
// The body is serialized to JSON, signed with HMAC-SHA256 under the
// session secret, and sent with the signature in the X-Ycm-Hmac header.
// Responses carrying a signature header are verified before parsing.
//
// Errors: ErrNoActiveSecret outside a running session, TransportError on
// network failure, ServerError on a non-2xx status, ParseError on a
// malformed body.
func (s *Session) Call(ctx context.Context, path string, body any) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal request body: %w", err)
	}

	secret, err := s.secrets.Current()
	if err != nil {
		return gjson.Result{}, err
	}

	if err := s.WaitReady(ctx); err != nil {
		return gjson.Result{}, err
	}
	addr, err := s.server.Addr()
	if err != nil {
		return gjson.Result{}, err
	}

	url := "http://" + addr + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, &TransportError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hmacHeader, SignatureHeader(secret, payload))

	reqID := uuid.NewString()[:8]
	start := time.Now()

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("request failed path=%s id=%s err=%v", path, reqID, err)
		return gjson.Result{}, &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &TransportError{Path: path, Err: err}
	}

	s.logger.Debug("request done path=%s id=%s status=%d dur=%s",
		path, reqID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &ServerError{
			Path:    path,
			Status:  resp.StatusCode,
			Message: gjson.GetBytes(respBody, "message").String(),
		}
	}

	if sig := resp.Header.Get(hmacHeader); sig != "" {
		if !VerifySignature(secret, respBody, sig) {
			return gjson.Result{}, &ParseError{Path: path, Err: ErrResponseSignature}
		}
	}

	if len(respBody) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(respBody) {
		return gjson.Result{}, &ParseError{Path: path, Err: fmt.Errorf("invalid JSON body")}
	}
	return gjson.ParseBytes(respBody), nil
}

// Post issues a signed request without blocking the caller.
//
// The response is delivered to onSuccess, failures to onError; either may
// be nil, in which case that outcome is dropped. Background notifications
// rely on the drop default so a flaky daemon never disrupts the user.
// Concurrent posts are independent and unordered; there is no queueing
// and no retry.
func (s *Session) Post(path string, body any, onSuccess func(gjson.Result), onError func(error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
		defer cancel()

		result, err := s.Call(ctx, path, body)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(result)
		}
	}()
}

// Stop tears the session down: the daemon is terminated, the secret is
// cleared, and the generated options file is removed. Idempotent; safe to
// call when already stopped or when the daemon is already gone.
func (s *Session) Stop() error {
	s.mu.Lock()
	tempPath := s.tempOptionsFile
	s.tempOptionsFile = ""
	s.state = SessionStopped
	s.mu.Unlock()

	err := s.server.Stop()
	s.secrets.Clear()

	if tempPath != "" {
		_ = os.Remove(tempPath)
	}
	return err
}

// IsRunning reports whether the session can serve requests.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != SessionStopped && s.server.IsRunning()
}
