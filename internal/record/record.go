// Package record defines the hub's domain records and the in-memory store
// that backs each list screen.
//
// Every record type shares only the id/title contract (Record). Optional
// behaviour used by filtering, sorting and dispatch is expressed through the
// small capability interfaces below, so a person card never pretends to have
// a deadline and a note never pretends to be completable.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is the contract every listed item satisfies.
type Record interface {
	RecordID() int64
	RecordTitle() string
}

// Completer is a record with a done flag.
type Completer interface {
	Record
	IsDone() bool
}

// Scheduled is a record with an optional ISO date (YYYY-MM-DD). Due returns
// "" when the record has no date.
type Scheduled interface {
	Record
	Due() string
}

// Prioritized is a record with a priority rank (high=3, medium=2, low=1).
type Prioritized interface {
	Record
	PriorityRank() int
}

// Tagged is a record carrying free-form tags (knowledge tags, people groups).
type Tagged interface {
	Record
	RecordTags() []string
}

// Searchable is a record with text for local search beyond its title.
type Searchable interface {
	Record
	SearchText() string
}

// Draft is a create or update body that can be checked before it is sent.
type Draft interface {
	Validate() error
}

// ─── Priority ────────────────────────────────────────────────────────────────

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes s; anything unrecognized is medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Rank orders priorities for sorting.
func (p Priority) Rank() int {
	switch ParsePriority(string(p)) {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

func (p Priority) Label() string {
	switch ParsePriority(string(p)) {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "medium"
	}
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = PriorityMedium
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Non-string priorities are treated like unknown strings.
		*p = PriorityMedium
		return nil
	}
	*p = ParsePriority(s)
	return nil
}

// ─── Flag ────────────────────────────────────────────────────────────────────

// Flag is a boolean that also accepts the 0/1 integers SQLite-backed
// endpoints return for boolean columns.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "true", "1":
		*f = true
	case "false", "0", "null", `""`:
		*f = false
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid boolean %s", s)
		}
		*f = n != 0
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}
