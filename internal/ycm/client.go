package ycm

import (
	"context"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/dshills/ycmclient/internal/logging"
)

// ModeFilter reports whether buffers in the given editor mode should be
// included in requests.
type ModeFilter func(mode string) bool

// CompletionClient is the domain-level API over a Session: it assembles
// request documents from editor state, submits completion and
// event-notification requests, and parses candidates from responses.
type CompletionClient struct {
	session  *Session
	eligible ModeFilter
	logger   *logging.Logger

	// inflight tracks filepaths with an unacknowledged parse
	// notification. Overlapping notifications for one buffer are
	// dropped, not queued; the idle timer provides the retry cadence.
	inflightMu sync.Mutex
	inflight   map[string]bool
}

// ClientOption configures a completion client.
type ClientOption func(*CompletionClient)

// WithModeFilter sets the eligibility filter for buffer modes.
func WithModeFilter(f ModeFilter) ClientOption {
	return func(c *CompletionClient) {
		c.eligible = f
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *logging.Logger) ClientOption {
	return func(c *CompletionClient) {
		c.logger = l.WithComponent("client")
	}
}

// NewCompletionClient creates a completion client over the given session.
// By default every buffer is eligible.
func NewCompletionClient(session *Session, opts ...ClientOption) *CompletionClient {
	c := &CompletionClient{
		session:  session,
		eligible: func(string) bool { return true },
		logger:   logging.Null,
		inflight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildBaseRequest assembles the request document shared by completion and
// event-notification calls: cursor position, current filepath, and a
// snapshot of every eligible buffer. Snapshots are taken here, at request
// time, so they always reflect current editor state.
func (c *CompletionClient) BuildBaseRequest(st EditorState) RequestDocument {
	fileData := make(map[string]FileData, len(st.Buffers))
	for _, buf := range st.Buffers {
		if !c.eligible(buf.Mode) {
			continue
		}
		fileData[buf.Path] = FileData{
			Contents:  buf.Contents,
			Filetypes: FiletypesForMode(buf.Mode),
		}
	}

	return RequestDocument{
		LineNum:   st.Line,
		ColumnNum: st.Column,
		Filepath:  st.Filepath,
		FileData:  fileData,
	}
}

// RequestCompletions submits a completion query and returns the parsed
// candidates in daemon order.
func (c *CompletionClient) RequestCompletions(ctx context.Context, st EditorState) ([]CompletionCandidate, error) {
	result, err := c.session.Call(ctx, EndpointCompletions, c.BuildBaseRequest(st))
	if err != nil {
		return nil, err
	}
	return parseCandidates(result), nil
}

// RequestCompletionsAsync submits a completion query without blocking.
// Candidates are delivered to cb; failures go to onError. Interactive
// queries should supply onError so the UI can surface failures.
func (c *CompletionClient) RequestCompletionsAsync(st EditorState, cb func([]CompletionCandidate), onError func(error)) {
	c.session.Post(EndpointCompletions, c.BuildBaseRequest(st), func(result gjson.Result) {
		if cb != nil {
			cb(parseCandidates(result))
		}
	}, onError)
}

// NotifyFileReadyToParse tells the daemon the current buffer is ready to
// parse. Fire-and-forget: errors are dropped, and the next idle period
// re-triggers the notification. While a
// notification for the same buffer is unacknowledged, further ones are
// dropped.
func (c *CompletionClient) NotifyFileReadyToParse(st EditorState) {
	c.notifyEvent(st, EventFileReadyToParse, true)
}

// NotifyBufferVisit tells the daemon the user entered a buffer.
func (c *CompletionClient) NotifyBufferVisit(st EditorState) {
	c.notifyEvent(st, EventBufferVisit, false)
}

// NotifyBufferUnload tells the daemon a buffer was closed.
func (c *CompletionClient) NotifyBufferUnload(st EditorState) {
	c.notifyEvent(st, EventBufferUnload, false)
}

// notifyEvent posts an event notification. When guarded, overlapping
// notifications for one filepath are dropped.
func (c *CompletionClient) notifyEvent(st EditorState, event string, guarded bool) {
	if guarded {
		c.inflightMu.Lock()
		if c.inflight[st.Filepath] {
			c.inflightMu.Unlock()
			c.logger.Debug("dropping %s for %s: previous send unacknowledged", event, st.Filepath)
			return
		}
		c.inflight[st.Filepath] = true
		c.inflightMu.Unlock()
	}

	doc := c.BuildBaseRequest(st)
	doc.EventName = event

	release := func() {
		if guarded {
			c.inflightMu.Lock()
			delete(c.inflight, st.Filepath)
			c.inflightMu.Unlock()
		}
	}

	c.session.Post(EndpointEventNotification, doc,
		func(gjson.Result) { release() },
		func(err error) {
			release()
			c.logger.Debug("%s for %s failed: %v", event, st.Filepath, err)
		})
}

// LoadExtraConfig asks the daemon to load an extra-configuration file.
func (c *CompletionClient) LoadExtraConfig(ctx context.Context, path string) error {
	_, err := c.session.Call(ctx, EndpointLoadExtraConf, map[string]string{"filepath": path})
	return err
}

// IsHealthy probes the daemon's health endpoint.
func (c *CompletionClient) IsHealthy(ctx context.Context) bool {
	_, err := c.session.Call(ctx, EndpointHealthy, struct{}{})
	return err == nil
}
