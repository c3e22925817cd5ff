package ycm

import "time"

// Editor supplies buffer and cursor state from the hosting editor.
// Implementations must return current contents, not cached copies; the
// client snapshots state at request time.
type Editor interface {
	// Snapshot returns the editor's current state: the active buffer's
	// path and cursor position, and every buffer whose mode is
	// completion-eligible.
	Snapshot() EditorState
}

// IdleScheduler schedules a callback to run each time the editor has been
// idle for the given interval. The timer re-arms after each idle period.
type IdleScheduler interface {
	// OnIdle registers fn and returns a function that stops future
	// invocations. Stop must be safe to call more than once.
	OnIdle(d time.Duration, fn func()) (stop func())
}
