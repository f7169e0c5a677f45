package main

import (
	"time"

	"github.com/jakebf/hubc/internal/gesture"
)

// ─── Messages ────────────────────────────────────────────────────────────────
//
// All messages are internal to the Update loop. Async tea.Cmd functions
// (in commands.go and screen.go) produce these; Update handles them.
// Messages with an `id` field use generation counters to ignore stale timers.

// previewMsg delivers glamour-rendered markdown for the preview cache.
type previewMsg struct {
	key     string
	content string
}

// reloadedMsg reports a finished reload of one collection. offline is set
// when the list shown came from the snapshot cache instead of the backend.
type reloadedMsg struct {
	collection string
	err        error
	offline    bool
	savedAt    time.Time
}

// hubLoadedMsg reports the combined startup load of hub mode.
type hubLoadedMsg struct {
	err error
}

// intentDoneMsg carries the outcome of a dispatched swipe or key action.
type intentDoneMsg struct {
	collection string
	intent     gesture.Intent
	skipped    bool
	err        error
}

// savedMsg reports a create or update submitted from the form.
type savedMsg struct {
	collection string
	id         int64
	created    bool
	err        error
}

type noteAddedMsg struct {
	personID int64
	err      error
}

// frameMsg drives swipe animations while any row is moving.
type frameMsg struct{}

// configChangedMsg is sent by the fsnotify watcher after debounce.
type configChangedMsg struct{}

// configUpdatedMsg is sent after the setup wizard completes.
type configUpdatedMsg struct{}

type statusClearMsg struct {
	id int
}

type errMsg struct {
	err error
}
