package main

import (
	"errors"
	"net/http"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/projection"
	"github.com/jakebf/hubc/internal/record"
	"github.com/jakebf/hubc/internal/snapshot"
)

func TestMain(m *testing.M) {
	// Status messages clear after a tick; keep test runs fast.
	statusTimeout = time.Millisecond
	os.Exit(m.Run())
}

// testModel returns a sized model over a seeded demo backend with no latency.
func testModel(t *testing.T, collections ...string) model {
	t.Helper()
	cfg := newDefaultConfig()
	b, err := newDemoBackend(cfg, zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("newDemoBackend: %v", err)
	}
	if len(collections) == 0 {
		collections = api.Collections
	}
	m := newModel(b, screensFor(b, cfg, collections...), cfg, "", nil, nil)
	execCmd(t, &m, m.Init())
	m2, cmd := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	m = m2.(model)
	execCmd(t, &m, cmd)
	return m
}

// execCmd runs a tea.Cmd synchronously and feeds resulting messages back into the model.
// For tea.BatchMsg (from tea.Batch), it recursively executes each sub-command.
// Spinner ticks and status clears are dropped so status text stays inspectable.
func execCmd(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if msg == nil {
		return
	}
	// tea.Batch returns a function that returns a tea.BatchMsg (which is []tea.Cmd)
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, sub := range batch {
			execCmd(t, m, sub)
		}
		return
	}
	switch msg.(type) {
	case spinner.TickMsg, statusClearMsg:
		return
	}
	m2, newCmd := m.Update(msg)
	*m = m2.(model)
	if newCmd != nil {
		execCmd(t, m, newCmd)
	}
}

// press sends each key and runs the resulting commands.
func press(t *testing.T, m *model, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		case "ctrl+f":
			msg = tea.KeyMsg{Type: tea.KeyCtrlF}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m2, cmd := m.Update(msg)
		*m = m2.(model)
		execCmd(t, m, cmd)
	}
}

// drag simulates a left-button drag along row from column x0 to x1.
func drag(t *testing.T, m *model, row, x0, x1 int) {
	t.Helper()
	y := listTop + row
	events := []tea.MouseMsg{
		{X: x0, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft},
		{X: (x0 + x1) / 2, Y: y, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		{X: x1, Y: y, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft},
		{X: x1, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonNone},
	}
	for _, ev := range events {
		m2, cmd := m.Update(ev)
		*m = m2.(model)
		execCmd(t, m, cmd)
	}
}

func titles(m model) []string {
	var out []string
	for _, item := range m.list.Items() {
		out = append(out, item.(row).title)
	}
	return out
}

func rowIndex(t *testing.T, m model, title string) int {
	t.Helper()
	for i, item := range m.list.Items() {
		if item.(row).title == title {
			return i
		}
	}
	t.Fatalf("no row %q in %v", title, titles(m))
	return -1
}

func hasTitle(m model, title string) bool {
	for _, item := range m.list.Items() {
		if item.(row).title == title {
			return true
		}
	}
	return false
}

func TestHubModeLoadsEveryCollection(t *testing.T) {
	m := testModel(t)
	if !m.hubMode {
		t.Fatal("expected hub mode with three collections")
	}
	if m.loading {
		t.Error("loading still set after startup")
	}
	if got := m.screens[0].loaded(); got != 7 {
		t.Errorf("tasks loaded = %d, want 7", got)
	}
	if got := m.screens[1].loaded(); got != 3 {
		t.Errorf("people loaded = %d, want 3", got)
	}
	// "all" hides the done task
	if len(m.list.Items()) != 6 {
		t.Errorf("visible tasks = %d, want 6: %v", len(m.list.Items()), titles(m))
	}
	if hasTitle(m, "Water the plants") {
		t.Error("done task listed under the default filter")
	}
	view := m.View()
	for _, want := range []string{"Tasks", "People", "Knowledge"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing tab %q", want)
		}
	}
}

func TestSwipeLeftDeletesTask(t *testing.T) {
	m := testModel(t)
	idx := rowIndex(t, m, "Call the dentist")
	id := m.list.Items()[idx].(row).id

	drag(t, &m, idx, 40, 10)

	if hasTitle(m, "Call the dentist") {
		t.Errorf("deleted task still listed: %v", titles(m))
	}
	if _, ok := m.backend.tasks.Store().Find(id); ok {
		t.Error("deleted task still in store")
	}
	if m.animating {
		t.Error("animation still scheduled after the row settled")
	}
	if m.status.text != "Deleted" {
		t.Errorf("status = %q, want Deleted", m.status.text)
	}
}

func TestSwipeRightCompletesTask(t *testing.T) {
	m := testModel(t)
	idx := rowIndex(t, m, "Book train tickets")
	id := m.list.Items()[idx].(row).id

	drag(t, &m, idx, 10, 40)

	task, ok := m.backend.tasks.Store().Find(id)
	if !ok {
		t.Fatal("toggled task disappeared from store")
	}
	if !task.IsDone() {
		t.Error("task not marked done")
	}
	if hasTitle(m, "Book train tickets") {
		t.Error("done task still listed under the default filter")
	}

	// The done filter shows it again, at rest.
	m.cur().query().Filter = projection.FilterDone
	m.refresh()
	idx = rowIndex(t, m, "Book train tickets")
	if c, ok := m.cur().gestures().Lookup(id); ok && (c.Departed() || c.Offset() != 0) {
		t.Errorf("row at index %d still displaced: offset %v departed %v", idx, c.Offset(), c.Departed())
	}
}

func TestShortSwipeSnapsBack(t *testing.T) {
	m := testModel(t)
	idx := rowIndex(t, m, "Call the dentist")
	id := m.list.Items()[idx].(row).id

	drag(t, &m, idx, 40, 35) // 5 columns is under the commit threshold

	if !hasTitle(m, "Call the dentist") {
		t.Fatal("short swipe removed the row")
	}
	c, ok := m.cur().gestures().Lookup(id)
	if !ok {
		t.Fatal("no controller for dragged row")
	}
	if c.Offset() != 0 || c.Animating() {
		t.Errorf("row not at rest: offset %v", c.Offset())
	}
}

func TestFailedDeleteBringsRowBack(t *testing.T) {
	m := testModel(t)
	m.backend.demo.FailNext(http.MethodDelete, http.StatusInternalServerError, "database is locked")
	idx := rowIndex(t, m, "Call the dentist")
	id := m.list.Items()[idx].(row).id

	drag(t, &m, idx, 40, 10)

	if !hasTitle(m, "Call the dentist") {
		t.Fatalf("row vanished after failed delete: %v", titles(m))
	}
	c, ok := m.cur().gestures().Lookup(id)
	if !ok {
		t.Fatal("controller pruned for a visible row")
	}
	if c.Departed() || c.Offset() != 0 {
		t.Errorf("row not restored: offset %v departed %v", c.Offset(), c.Departed())
	}
	if !strings.Contains(m.status.text, "database is locked") {
		t.Errorf("status = %q, want the server message", m.status.text)
	}
}

func TestPeopleIgnoreRightSwipe(t *testing.T) {
	m := testModel(t)
	press(t, &m, "2")
	if m.cur().name() != api.People {
		t.Fatalf("screen = %q, want people", m.cur().name())
	}
	before := m.cur().loaded()
	idx := rowIndex(t, m, "Ivan Petrov")

	drag(t, &m, idx, 10, 60)

	if got := m.cur().loaded(); got != before {
		t.Errorf("people = %d after right swipe, want %d", got, before)
	}
	if !hasTitle(m, "Ivan Petrov") {
		t.Error("person hidden after right swipe")
	}
	for _, c := range m.backend.demo.Calls() {
		if c.Method == http.MethodPatch {
			t.Errorf("right swipe on a person reached the server: %s %s", c.Method, c.Path)
		}
	}
}

func TestKeyboardToggleAndDelete(t *testing.T) {
	m := testModel(t)
	m.list.Select(rowIndex(t, m, "Pay the internet bill"))
	press(t, &m, "s")
	if hasTitle(m, "Pay the internet bill") {
		t.Error("toggled task still listed")
	}

	m.list.Select(rowIndex(t, m, "Call the dentist"))
	press(t, &m, "#")
	if !m.confirmDelete {
		t.Fatal("delete did not ask for confirmation")
	}
	press(t, &m, "n")
	if !hasTitle(m, "Call the dentist") {
		t.Fatal("cancelled delete removed the row")
	}
	press(t, &m, "#", "y")
	if hasTitle(m, "Call the dentist") {
		t.Error("confirmed delete kept the row")
	}
}

func TestFilterAndSortKeys(t *testing.T) {
	m := testModel(t)

	press(t, &m, "f") // all → today
	if got := m.cur().query().Filter; got != projection.FilterToday {
		t.Fatalf("filter = %q, want today", got)
	}
	if got := titles(m); len(got) != 1 || got[0] != "Pay the internet bill" {
		t.Errorf("today = %v, want only the bill", got)
	}
	if !strings.Contains(m.list.Title, "today") {
		t.Errorf("title %q does not show the filter", m.list.Title)
	}

	press(t, &m, "esc")
	if got := m.cur().query().Filter; got != projection.FilterAll {
		t.Errorf("esc left filter %q", got)
	}

	press(t, &m, "o") // date → priority
	if got := m.cur().query().Sort; got != projection.SortPriority {
		t.Fatalf("sort = %q, want priority", got)
	}
	first := m.list.Items()[0].(row)
	if first.priority != record.PriorityHigh {
		t.Errorf("first row %q has priority %q, want high", first.title, first.priority)
	}
}

func TestTagCycleOnKnowledge(t *testing.T) {
	m := testModel(t, api.Knowledge)
	press(t, &m, "]")
	q := m.cur().query()
	if !q.Filter.IsTag() {
		t.Fatalf("filter = %q, want a tag", q.Filter)
	}
	for _, item := range m.list.Items() {
		r := item.(row)
		found := false
		for _, tag := range r.tags {
			if strings.HasPrefix(tag, string(q.Filter)) {
				found = true
			}
		}
		if !found {
			t.Errorf("row %q listed under tag %q with tags %v", r.title, q.Filter, r.tags)
		}
	}
	press(t, &m, "[")
	if got := m.cur().query().Filter; got != projection.FilterAll {
		t.Errorf("cycling back gave %q, want all", got)
	}
}

func TestSearchPrompt(t *testing.T) {
	m := testModel(t)
	press(t, &m, "/", "dentist")
	if m.prompt.kind != promptSearch {
		t.Fatal("search prompt not open")
	}
	if !hasTitle(m, "Call the dentist") || hasTitle(m, "Pay the internet bill") {
		t.Errorf("search results = %v", titles(m))
	}
	press(t, &m, "enter")
	if m.prompt.kind != promptNone {
		t.Error("enter did not close the prompt")
	}
	if m.cur().query().Search != "dentist" {
		t.Errorf("search = %q after enter, want it kept", m.cur().query().Search)
	}
	press(t, &m, "esc")
	if len(m.list.Items()) != 6 {
		t.Errorf("esc did not clear the search: %v", titles(m))
	}
}

// findAndOpen searches every list for query and opens the hit titled title.
func findAndOpen(t *testing.T, m *model, query, title string) {
	t.Helper()
	press(t, m, "ctrl+f", query)
	if m.prompt.kind != promptFind {
		t.Fatal("ctrl+f did not open the cross-list search")
	}
	idx := slices.IndexFunc(m.prompt.hits, func(h hit) bool { return h.title == title })
	if idx < 0 {
		t.Fatalf("no hit titled %q in %+v", title, m.prompt.hits)
	}
	for range idx {
		press(t, m, "down")
	}
	press(t, m, "enter")
	if m.prompt.kind != promptNone {
		t.Error("enter did not close the search")
	}
}

func TestFindAcrossListsSwitchesScreen(t *testing.T) {
	m := testModel(t)
	press(t, &m, "ctrl+f")
	if !strings.Contains(m.View(), "Search all lists") {
		t.Error("search overlay not shown")
	}
	press(t, &m, "esc")

	// People match on relation as well as name.
	findAndOpen(t, &m, "sister", "Мария Иванова")
	if m.cur().name() != api.People {
		t.Fatalf("screen = %q, want people", m.cur().name())
	}
	if r, ok := m.selectedRow(); !ok || r.title != "Мария Иванова" {
		t.Errorf("selected = %+v, want the matching person", r)
	}
}

func TestFindOpensDoneTask(t *testing.T) {
	m := testModel(t)
	press(t, &m, "/", "dentist", "enter")

	findAndOpen(t, &m, "plants", "Water the plants")
	q := m.cur().query()
	if m.cur().name() != api.Tasks || q.Search != "" {
		t.Fatalf("screen = %q search = %q", m.cur().name(), q.Search)
	}
	if q.Filter != projection.FilterDone {
		t.Errorf("filter = %q, want done so the record is listed", q.Filter)
	}
	if r, ok := m.selectedRow(); !ok || r.title != "Water the plants" {
		t.Errorf("selected = %+v", r)
	}
}

func TestFindOnlyInHubMode(t *testing.T) {
	m := testModel(t, api.Tasks)
	press(t, &m, "ctrl+f")
	if m.prompt.kind != promptNone {
		t.Error("cross-list search opened with a single list")
	}
}

func TestFormValidatesBeforeSaving(t *testing.T) {
	m := testModel(t)
	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	m = m2.(model)
	if !m.form.active || m.form.id != 0 {
		t.Fatal("n did not open an empty form")
	}

	press(t, &m, "ctrl+s")
	if !m.form.active {
		t.Fatal("form closed on an empty title")
	}
	if !strings.Contains(m.form.err, "title is required") {
		t.Errorf("form error = %q", m.form.err)
	}
	if !errors.Is(m.cur().buildDraft(0, []string{"", "", "", ""}).Validate(), record.ErrValidation) {
		t.Error("empty draft passed validation")
	}

	press(t, &m, "Buy milk", "ctrl+s")
	if m.form.active {
		t.Fatalf("form still open: %q", m.form.err)
	}
	if !hasTitle(m, "Buy milk") {
		t.Errorf("created task not listed: %v", titles(m))
	}
	if r, ok := m.selectedRow(); !ok || r.title != "Buy milk" {
		t.Errorf("cursor not on the new task")
	}
	if m.status.text != "Created" {
		t.Errorf("status = %q, want Created", m.status.text)
	}
}

func TestEditFormUpdatesRecord(t *testing.T) {
	m := testModel(t)
	m.list.Select(rowIndex(t, m, "Call the dentist"))
	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	m = m2.(model)
	if !m.form.active || m.form.inputs[0].Value() != "Call the dentist" {
		t.Fatalf("edit form not prefilled: %+v", m.form.active)
	}
	m.form.inputs[0].SetValue("Call the dentist again")
	press(t, &m, "ctrl+s")
	if !hasTitle(m, "Call the dentist again") {
		t.Errorf("edit not applied: %v", titles(m))
	}
}

func TestAddNoteToPerson(t *testing.T) {
	m := testModel(t, api.People)
	idx := rowIndex(t, m, "Ivan Petrov")
	m.list.Select(idx)
	id := m.list.Items()[idx].(row).id

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	m = m2.(model)
	if m.prompt.kind != promptNote {
		t.Fatal("a did not open the note prompt")
	}
	press(t, &m, "Owes me a book", "enter")
	p, ok := m.backend.people.Store().Find(id)
	if !ok {
		t.Fatal("person missing after note")
	}
	if len(p.Notes) != 1 || p.Notes[0].Text != "Owes me a book" {
		t.Errorf("notes = %+v", p.Notes)
	}
}

func TestNotesOnlyForPeople(t *testing.T) {
	m := testModel(t)
	press(t, &m, "a")
	if m.prompt.kind != promptNone {
		t.Error("note prompt opened on tasks")
	}
}

func TestScreenSwitching(t *testing.T) {
	m := testModel(t)
	press(t, &m, "3")
	if m.cur().name() != api.Knowledge {
		t.Errorf("3 → %q", m.cur().name())
	}
	press(t, &m, "tab")
	if m.cur().name() != api.Tasks {
		t.Errorf("tab from knowledge → %q, want tasks", m.cur().name())
	}
	if !hasTitle(m, "Call the dentist") {
		t.Errorf("task rows not restored after switching back: %v", titles(m))
	}
}

func TestSingleCollectionHasNoTabs(t *testing.T) {
	m := testModel(t, api.Tasks)
	if m.hubMode {
		t.Error("single collection started in hub mode")
	}
	press(t, &m, "2")
	if m.cur().name() != api.Tasks {
		t.Error("number keys switched screens outside hub mode")
	}
}

type refusingTransport struct{}

func (refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
}

func TestOfflineFallsBackToSnapshot(t *testing.T) {
	cfg := newDefaultConfig()
	cache := snapshot.Open(t.TempDir())
	saved := []record.Task{{ID: 1, Title: "Cached task", Priority: record.PriorityHigh}}
	if err := snapshot.Save(cache, "42", api.Tasks, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}
	client := &api.Client{
		BaseURL:  "http://hub.invalid",
		Identity: api.Identity{UserID: "42"},
		HTTP:     &http.Client{Transport: refusingTransport{}},
	}
	b := wireBackend(client, cfg, cache, zap.NewNop())
	m := newModel(b, screensFor(b, cfg, api.Tasks), cfg, "", nil, nil)
	execCmd(t, &m, m.Init())
	m2, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = m2.(model)
	execCmd(t, &m, cmd)

	if _, off := m.cur().offlineSince(); !off {
		t.Error("screen not flagged offline")
	}
	if !hasTitle(m, "Cached task") {
		t.Errorf("snapshot not shown: %v", titles(m))
	}
	if !strings.Contains(m.list.Title, "offline") {
		t.Errorf("title %q does not show offline", m.list.Title)
	}
}

func TestHelpOverlay(t *testing.T) {
	m := testModel(t)
	press(t, &m, "?")
	if !m.help.ShowAll {
		t.Fatal("? did not open help")
	}
	if !strings.Contains(m.View(), "Keybindings") {
		t.Error("help overlay not rendered")
	}
	press(t, &m, "s") // swallowed
	if !hasTitle(m, "Call the dentist") || len(m.list.Items()) != 6 {
		t.Error("key leaked through the help overlay")
	}
	press(t, &m, "esc")
	if m.help.ShowAll {
		t.Error("esc did not close help")
	}
}

func TestEmptyStateHints(t *testing.T) {
	m := testModel(t)
	press(t, &m, "/", "zzzzqqq")
	hint, empty := m.emptyHint()
	if !empty || !strings.Contains(hint, "Nothing matches") {
		t.Errorf("emptyHint = %q, %v", hint, empty)
	}
}

func BenchmarkUpdateJK(b *testing.B) {
	cfg := newDefaultConfig()
	be, err := newDemoBackend(cfg, zap.NewNop(), 0)
	if err != nil {
		b.Fatal(err)
	}
	m := newModel(be, screensFor(be, cfg, api.Collections...), cfg, "", nil, nil)
	if err := be.loadAll(b.Context()); err != nil {
		b.Fatal(err)
	}
	m.refresh()
	m2, _ := m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	m = m2.(model)

	jKey := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}
	kKey := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var m2 tea.Model
		if i%2 == 0 {
			m2, _ = m.Update(jKey)
		} else {
			m2, _ = m.Update(kKey)
		}
		m = m2.(model)
	}
}
