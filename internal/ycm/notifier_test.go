package ycm

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// fakeEditor returns a fixed snapshot.
type fakeEditor struct {
	mu sync.Mutex
	st EditorState
}

func (e *fakeEditor) Snapshot() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// manualScheduler lets tests fire the idle callback by hand.
type manualScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	stopped  int
}

func (s *manualScheduler) OnIdle(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	s.fn = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stopped++
		s.fn = nil
	}
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func TestParseNotifier_FiresOnIdle(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	events := make(chan gjson.Result, 4)
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		events <- gjson.ParseBytes(body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	client := NewCompletionClient(session)
	editor := &fakeEditor{st: EditorState{
		Filepath: "/tmp/a.py",
		Line:     1,
		Column:   1,
		Buffers:  []Buffer{{Path: "/tmp/a.py", Contents: "x = 1", Mode: "python-mode"}},
	}}
	sched := &manualScheduler{}

	notifier := NewParseNotifier(client, editor, sched, 2*time.Second)
	notifier.Start()
	defer notifier.Stop()

	if sched.interval != 2*time.Second {
		t.Errorf("scheduled interval = %v, want 2s", sched.interval)
	}

	sched.fire()

	select {
	case body := <-events:
		if got := body.Get("event_name").String(); got != "FileReadyToParse" {
			t.Errorf("event_name = %q, want FileReadyToParse", got)
		}
		if got := body.Get("filepath").String(); got != "/tmp/a.py" {
			t.Errorf("filepath = %q, want /tmp/a.py", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("idle tick produced no notification")
	}
}

func TestParseNotifier_SkipsEmptyBuffer(t *testing.T) {
	d := newFakeDaemon(t)
	session := startSession(t, d)

	received := make(chan struct{}, 1)
	d.setHandler(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "{}")
	})

	client := NewCompletionClient(session)
	editor := &fakeEditor{st: EditorState{}} // no current buffer
	sched := &manualScheduler{}

	notifier := NewParseNotifier(client, editor, sched, time.Second)
	notifier.Start()
	defer notifier.Stop()

	sched.fire()

	select {
	case <-received:
		t.Error("notification sent with no current buffer")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestParseNotifier_StartStopIdempotent(t *testing.T) {
	sched := &manualScheduler{}
	notifier := NewParseNotifier(nil, &fakeEditor{}, sched, time.Second)

	notifier.Start()
	notifier.Start() // second start is a no-op

	notifier.Stop()
	notifier.Stop() // second stop is a no-op

	if sched.stopped != 1 {
		t.Errorf("scheduler stop invoked %d times, want 1", sched.stopped)
	}

	// After Stop, firing the old callback does nothing.
	sched.fire()
}
