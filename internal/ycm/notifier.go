package ycm

import (
	"sync"
	"time"
)

// ParseNotifier emits FileReadyToParse notifications each time the editor
// has been idle for the configured interval.
//
// The notifier owns no timer of its own; the hosting editor's
// IdleScheduler drives it. Overlapping sends for the same buffer are
// dropped by the client's in-flight guard, and failed sends are not
// retried: the next idle period is the retry cadence.
type ParseNotifier struct {
	client    *CompletionClient
	editor    Editor
	scheduler IdleScheduler
	interval  time.Duration

	mu      sync.Mutex
	stop    func()
	running bool
}

// NewParseNotifier creates a parse notifier. The interval is how long the
// editor must be idle before a notification fires.
func NewParseNotifier(client *CompletionClient, editor Editor, scheduler IdleScheduler, interval time.Duration) *ParseNotifier {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ParseNotifier{
		client:    client,
		editor:    editor,
		scheduler: scheduler,
		interval:  interval,
	}
}

// Start arms the idle timer. Idempotent.
func (n *ParseNotifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return
	}
	n.running = true
	n.stop = n.scheduler.OnIdle(n.interval, n.tick)
}

// Stop disarms the idle timer. Idempotent.
func (n *ParseNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return
	}
	n.running = false
	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
}

// tick snapshots the editor and fires a notification for the current
// buffer.
func (n *ParseNotifier) tick() {
	st := n.editor.Snapshot()
	if st.Filepath == "" {
		return
	}
	n.client.NotifyFileReadyToParse(st)
}
