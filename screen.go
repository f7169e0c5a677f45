package main

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/dispatch"
	"github.com/jakebf/hubc/internal/gesture"
	"github.com/jakebf/hubc/internal/projection"
	"github.com/jakebf/hubc/internal/record"
)

// ─── Rows ────────────────────────────────────────────────────────────────────

// row is the list item every screen renders, whatever record it came from.
type row struct {
	id       int64
	title    string
	badge    string
	done     bool
	priority record.Priority
	tags     []string
	meta     string // right-hand column: deadline, relation, created date
	overdue  bool
}

func (r row) FilterValue() string { return r.title }

// hit is one result of a search across every screen.
type hit struct {
	collection string
	id         int64
	title      string
	meta       string
}

// field is one input of the new/edit form.
type field struct {
	label       string
	placeholder string
	limit       int
}

// ─── Screen ──────────────────────────────────────────────────────────────────

// screen is one collection's list as the model sees it. pane[T] is the only
// implementation; the interface hides the record type from the model.
type screen interface {
	name() string
	label() string
	query() *projection.Query
	filterKeys() []projection.FilterKey
	canToggle() bool
	canAnnotate() bool

	rows(now time.Time, locale language.Tag) []list.Item
	find(query string, now time.Time) []hit
	tags(locale language.Tag) []string
	loaded() int
	title(id int64) (string, bool)
	markdown(id int64) (string, bool)

	gestures() *gesture.Registry
	drain() []gesture.Intent
	dispatch(in gesture.Intent) tea.Cmd
	settle(id int64)
	busy(id int64) bool
	idle() bool

	reload() tea.Cmd
	setOffline(on bool, savedAt time.Time)
	offlineSince() (time.Time, bool)

	formFields() []field
	formValues(id int64) []string
	buildDraft(id int64, values []string) record.Draft
	submit(id int64, draft record.Draft) tea.Cmd
}

type pane[T record.Record] struct {
	collection string
	heading    string
	disp       *dispatch.Dispatcher[T]
	b          *backend
	reg        *gesture.Registry
	pending    []gesture.Intent
	inflight   map[int64]int

	q        projection.Query
	filters  []projection.FilterKey
	toggles  bool
	notes    bool
	fields   []field
	values   func(T) []string
	draft    func(base T, values []string) record.Draft
	toRow    func(rec T, now time.Time) row
	describe func(T) string

	offline   bool
	offlineAt time.Time
}

func newPane[T record.Record](b *backend, collection, label string, disp *dispatch.Dispatcher[T], opts gesture.Options, cfg config) *pane[T] {
	p := &pane[T]{
		collection: collection,
		heading:    label,
		disp:       disp,
		b:          b,
		inflight:   make(map[int64]int),
		q: projection.Query{
			Filter: projection.FilterAll,
			Sort:   projection.ParseSort(cfg.DefaultSort),
		},
		filters: []projection.FilterKey{projection.FilterAll},
	}
	p.reg = gesture.NewRegistry(opts, func(in gesture.Intent) {
		p.pending = append(p.pending, in)
	})
	return p
}

func (p *pane[T]) name() string                          { return p.collection }
func (p *pane[T]) label() string                         { return p.heading }
func (p *pane[T]) query() *projection.Query              { return &p.q }
func (p *pane[T]) filterKeys() []projection.FilterKey    { return p.filters }
func (p *pane[T]) canToggle() bool                       { return p.toggles }
func (p *pane[T]) canAnnotate() bool                     { return p.notes }
func (p *pane[T]) gestures() *gesture.Registry           { return p.reg }
func (p *pane[T]) formFields() []field                   { return p.fields }
func (p *pane[T]) loaded() int                           { return p.disp.Store().Len() }
func (p *pane[T]) offlineSince() (time.Time, bool)       { return p.offlineAt, p.offline }
func (p *pane[T]) setOffline(on bool, savedAt time.Time) { p.offline, p.offlineAt = on, savedAt }

func (p *pane[T]) rows(now time.Time, locale language.Tag) []list.Item {
	q := p.q
	q.Now = now
	q.Locale = locale
	records := projection.Project(p.disp.Store().Snapshot(), q)
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = p.toRow(r, now)
	}
	return items
}

// find matches query against every loaded record, ignoring the pane's own
// filter and search.
func (p *pane[T]) find(query string, now time.Time) []hit {
	matches := projection.Search(p.disp.Store().Snapshot(), query)
	out := make([]hit, len(matches))
	for i, rec := range matches {
		r := p.toRow(rec, now)
		out[i] = hit{collection: p.collection, id: r.id, title: r.title, meta: r.meta}
	}
	return out
}

func (p *pane[T]) tags(locale language.Tag) []string {
	return projection.Tags(p.disp.Store().Snapshot(), locale)
}

func (p *pane[T]) title(id int64) (string, bool) {
	r, ok := p.disp.Store().Find(id)
	if !ok {
		return "", false
	}
	return r.RecordTitle(), true
}

func (p *pane[T]) markdown(id int64) (string, bool) {
	r, ok := p.disp.Store().Find(id)
	if !ok {
		return "", false
	}
	return p.describe(r), true
}

// drain hands over the intents emitted since the last call.
func (p *pane[T]) drain() []gesture.Intent {
	out := p.pending
	p.pending = nil
	return out
}

// dispatch marks id busy and returns a command running the intent through
// the dispatcher. settle must be called when the intentDoneMsg arrives.
func (p *pane[T]) dispatch(in gesture.Intent) tea.Cmd {
	p.inflight[in.RecordID]++
	disp, coll := p.disp, p.collection
	return func() tea.Msg {
		out := disp.Handle(context.Background(), in)
		return intentDoneMsg{collection: coll, intent: in, skipped: out.Skipped, err: out.Err}
	}
}

func (p *pane[T]) settle(id int64) {
	if p.inflight[id]--; p.inflight[id] <= 0 {
		delete(p.inflight, id)
	}
}

// busy reports whether an intent for id is still running.
func (p *pane[T]) busy(id int64) bool { return p.inflight[id] > 0 }

func (p *pane[T]) idle() bool { return len(p.inflight) == 0 }

// reload fetches the collection. When the backend is unreachable and
// nothing has been loaded yet, the last snapshot is shown instead.
func (p *pane[T]) reload() tea.Cmd {
	disp, b, coll := p.disp, p.b, p.collection
	return func() tea.Msg {
		savedAt, err := fetch(context.Background(), b, disp, coll)
		return reloadedMsg{collection: coll, err: err, offline: !savedAt.IsZero(), savedAt: savedAt}
	}
}

func (p *pane[T]) base(id int64) T {
	var zero T
	if id == 0 {
		return zero
	}
	r, ok := p.disp.Store().Find(id)
	if !ok {
		return zero
	}
	return r
}

func (p *pane[T]) formValues(id int64) []string {
	if id == 0 {
		return make([]string, len(p.fields))
	}
	return p.values(p.base(id))
}

func (p *pane[T]) buildDraft(id int64, values []string) record.Draft {
	return p.draft(p.base(id), values)
}

func (p *pane[T]) submit(id int64, draft record.Draft) tea.Cmd {
	disp, coll := p.disp, p.collection
	return func() tea.Msg {
		if id == 0 {
			newID, err := disp.Create(context.Background(), draft)
			return savedMsg{collection: coll, id: newID, created: true, err: err}
		}
		err := disp.Update(context.Background(), id, draft)
		return savedMsg{collection: coll, id: id, err: err}
	}
}

// ─── Collections ─────────────────────────────────────────────────────────────

func taskScreen(b *backend, cfg config) *pane[record.Task] {
	p := newPane(b, api.Tasks, "Tasks", b.tasks, gesture.Options{}, cfg)
	p.q.Filter = projection.ParseFilter(cfg.DefaultFilter)
	p.filters = projection.BuiltinFilters
	p.toggles = true
	p.fields = []field{
		{label: "Title", placeholder: "what needs doing", limit: 200},
		{label: "Description", placeholder: "optional", limit: 1000},
		{label: "Deadline", placeholder: "YYYY-MM-DD", limit: 10},
		{label: "Priority", placeholder: "high / medium / low", limit: 6},
	}
	p.values = func(t record.Task) []string {
		return []string{t.Title, t.Description, t.Deadline, t.Priority.Label()}
	}
	p.draft = func(t record.Task, v []string) record.Draft {
		d := t.Draft()
		d.Title = strings.TrimSpace(v[0])
		d.Description = strings.TrimSpace(v[1])
		d.Deadline = nil
		if dl := strings.TrimSpace(v[2]); dl != "" {
			d.Deadline = &dl
		}
		d.Priority = record.ParsePriority(v[3])
		return d
	}
	p.toRow = taskRow
	p.describe = taskMarkdown
	return p
}

func peopleScreen(b *backend, cfg config) *pane[record.Person] {
	// A person has nothing to complete: right swipes snap back.
	p := newPane(b, api.People, "People", b.people, gesture.Options{DisableRight: true}, cfg)
	p.notes = true
	p.fields = []field{
		{label: "Name", placeholder: "full name", limit: 200},
		{label: "Relation", placeholder: "friend, colleague, ...", limit: 100},
		{label: "Birth date", placeholder: "YYYY-MM-DD", limit: 10},
		{label: "Workplace", placeholder: "optional", limit: 200},
		{label: "Groups", placeholder: "comma separated", limit: 200},
	}
	p.values = func(x record.Person) []string {
		return []string{x.FIO, x.Data.Relation, x.Data.BirthDate, x.Data.Workplace, strings.Join(x.Data.Groups, ", ")}
	}
	p.draft = func(x record.Person, v []string) record.Draft {
		d := x.Draft()
		d.FIO = strings.TrimSpace(v[0])
		d.Relation = strings.TrimSpace(v[1])
		d.BirthDate = strings.TrimSpace(v[2])
		d.Workplace = strings.TrimSpace(v[3])
		d.Groups = record.ParseTags(v[4])
		return d
	}
	p.toRow = personRow
	p.describe = personMarkdown
	return p
}

func knowledgeScreen(b *backend, cfg config) *pane[record.Knowledge] {
	p := newPane(b, api.Knowledge, "Knowledge", b.knowledge, gesture.Options{DisableRight: true}, cfg)
	p.fields = []field{
		{label: "Title", placeholder: "note title", limit: 200},
		{label: "Tags", placeholder: "comma separated, e.g. go, work/infra", limit: 200},
		{label: "Content", placeholder: "markdown", limit: 4000},
	}
	p.values = func(k record.Knowledge) []string {
		return []string{k.Title, strings.Join(k.Tags, ", "), k.Content}
	}
	p.draft = func(k record.Knowledge, v []string) record.Draft {
		d := k.Draft()
		d.Title = strings.TrimSpace(v[0])
		d.Tags = record.ParseTags(v[1])
		d.Content = strings.TrimSpace(v[2])
		return d
	}
	p.toRow = knowledgeRow
	p.describe = knowledgeMarkdown
	return p
}

// screensFor builds the screens for the named collections, in order.
func screensFor(b *backend, cfg config, names ...string) []screen {
	var out []screen
	for _, n := range names {
		switch n {
		case api.Tasks:
			out = append(out, taskScreen(b, cfg))
		case api.People:
			out = append(out, peopleScreen(b, cfg))
		case api.Knowledge:
			out = append(out, knowledgeScreen(b, cfg))
		}
	}
	return out
}
