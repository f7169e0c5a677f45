package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for deadlines and birth dates.
const DateLayout = "2006-01-02"

// ErrValidation marks drafts rejected before any network call.
var ErrValidation = errors.New("validation failed")

// ─── Task ────────────────────────────────────────────────────────────────────

type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Deadline    string   `json:"deadline,omitempty"` // YYYY-MM-DD, "" when null
	Priority    Priority `json:"priority"`
	Done        Flag     `json:"done"`
	PersonID    int64    `json:"person_id,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

func (t Task) RecordID() int64     { return t.ID }
func (t Task) RecordTitle() string { return t.Title }
func (t Task) IsDone() bool        { return bool(t.Done) }
func (t Task) Due() string         { return t.Deadline }
func (t Task) PriorityRank() int   { return t.Priority.Rank() }
func (t Task) SearchText() string  { return t.Title + " " + t.Description }

// UnmarshalJSON defaults an absent priority to medium. Priority's own
// decoder only runs when the key is present.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	v := plain{Priority: PriorityMedium}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = Task(v)
	return nil
}

// WithDone returns a copy of t with its done flag set.
func (t Task) WithDone(done bool) Task {
	t.Done = Flag(done)
	return t
}

// TaskDraft is the create/update body for a task.
type TaskDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Deadline    *string  `json:"deadline"`
	Priority    Priority `json:"priority"`
	PersonID    *int64   `json:"person_id,omitempty"`
}

func (d TaskDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if d.Deadline != nil && *d.Deadline != "" {
		if _, err := time.Parse(DateLayout, *d.Deadline); err != nil {
			return fmt.Errorf("%w: deadline %q is not YYYY-MM-DD", ErrValidation, *d.Deadline)
		}
	}
	return nil
}

// Draft returns the editable fields of t.
func (t Task) Draft() TaskDraft {
	d := TaskDraft{Title: t.Title, Description: t.Description, Priority: ParsePriority(string(t.Priority))}
	if t.Deadline != "" {
		dl := t.Deadline
		d.Deadline = &dl
	}
	if t.PersonID != 0 {
		id := t.PersonID
		d.PersonID = &id
	}
	return d
}

// ─── Person ──────────────────────────────────────────────────────────────────

type PersonData struct {
	BirthDate   string   `json:"birth_date,omitempty"`
	Relation    string   `json:"relation,omitempty"`
	Workplace   string   `json:"workplace,omitempty"`
	Financial   string   `json:"financial,omitempty"`
	Strengths   string   `json:"strengths,omitempty"`
	Weaknesses  string   `json:"weaknesses,omitempty"`
	Benefits    string   `json:"benefits,omitempty"`
	Problems    string   `json:"problems,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Connections []int64  `json:"connections,omitempty"`
}

type PersonNote struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at,omitempty"`
}

type Person struct {
	ID        int64        `json:"id"`
	FIO       string       `json:"fio"`
	Data      PersonData   `json:"data"`
	Notes     []PersonNote `json:"notes,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
}

func (p Person) RecordID() int64      { return p.ID }
func (p Person) RecordTitle() string  { return p.FIO }
func (p Person) RecordTags() []string { return p.Data.Groups }
func (p Person) SearchText() string {
	return strings.Join([]string{p.FIO, p.Data.Relation, p.Data.Workplace}, " ")
}

// Initials returns up to two upper-case initials for avatar badges.
func (p Person) Initials() string {
	parts := strings.Fields(p.FIO)
	switch {
	case len(parts) >= 2:
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	case len(parts) == 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		return "?"
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

// PersonDraft is the create/update body for a person. The backend stores
// everything except fio in its data column.
type PersonDraft struct {
	FIO string `json:"fio"`
	PersonData
}

func (d PersonDraft) Validate() error {
	if strings.TrimSpace(d.FIO) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if d.BirthDate != "" {
		if _, err := time.Parse(DateLayout, d.BirthDate); err != nil {
			return fmt.Errorf("%w: birth date %q is not YYYY-MM-DD", ErrValidation, d.BirthDate)
		}
	}
	return nil
}

func (p Person) Draft() PersonDraft {
	return PersonDraft{FIO: p.FIO, PersonData: p.Data}
}

// ─── Knowledge ───────────────────────────────────────────────────────────────

type Knowledge struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	PersonID  int64    `json:"person_id,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func (k Knowledge) RecordID() int64      { return k.ID }
func (k Knowledge) RecordTitle() string  { return k.Title }
func (k Knowledge) RecordTags() []string { return k.Tags }
func (k Knowledge) SearchText() string   { return k.Title + " " + k.Content }

type KnowledgeDraft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func (d KnowledgeDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

func (k Knowledge) Draft() KnowledgeDraft {
	return KnowledgeDraft{Title: k.Title, Content: k.Content, Tags: k.Tags}
}

// ParseTags splits a comma-separated tag string, trimming blanks and
// dropping duplicates while keeping first-seen order.
func ParseTags(s string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		tags = append(tags, part)
	}
	return tags
}
