package main

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/gesture"
	"github.com/jakebf/hubc/internal/projection"
)

// ─── Key Map ─────────────────────────────────────────────────────────────────

type keyMap struct {
	Navigate   key.Binding
	NextScreen key.Binding
	Screen     key.Binding // 1-3 direct switch (display-only binding)
	Filter     key.Binding
	PrevTag    key.Binding
	NextTag    key.Binding
	Sort       key.Binding
	Search     key.Binding
	Find       key.Binding
	Toggle     key.Binding
	Delete     key.Binding
	New        key.Binding
	Edit       key.Binding
	Copy       key.Binding
	Note       key.Binding
	Reload     key.Binding
	ScrollDown key.Binding
	ScrollUp   key.Binding
	Help       key.Binding
	Settings   key.Binding
	Quit       key.Binding
	ForceQuit  key.Binding
}

func newKeyMap(hubMode bool) keyMap {
	k := keyMap{
		Navigate:   key.NewBinding(key.WithKeys("j", "k"), key.WithHelp("j/k", "navigate")),
		NextScreen: key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next list")),
		Screen:     key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "tasks/people/knowledge")),
		Filter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle filter")),
		PrevTag:    key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "cycle tag filter")),
		NextTag:    key.NewBinding(key.WithKeys("]")),
		Sort:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "cycle sort")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Find:       key.NewBinding(key.WithKeys("ctrl+f"), key.WithHelp("ctrl+f", "search all lists")),
		Toggle:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "toggle done")),
		Delete:     key.NewBinding(key.WithKeys("#"), key.WithHelp("#", "delete")),
		New:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy title")),
		Note:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add note")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		ScrollDown: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "page down")),
		ScrollUp:   key.NewBinding(key.WithKeys("B"), key.WithHelp("B", "page up")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Settings:   key.NewBinding(key.WithKeys(","), key.WithHelp(",", "settings")),
		Quit:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
	k.NextScreen.SetEnabled(hubMode)
	k.Screen.SetEnabled(hubMode)
	k.Find.SetEnabled(hubMode)
	return k
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.New, k.Edit, k.Toggle, k.Filter, k.Search, k.NextScreen, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Actions
		{k.New, k.Edit, k.Toggle, k.Delete, k.Note, k.Copy, k.Reload},
		// Navigation / view
		{k.Navigate, k.NextScreen, k.Screen, k.Filter, k.PrevTag, k.Sort, k.Search, k.Find, k.ScrollDown, k.ScrollUp, k.Help, k.Settings, k.Quit},
	}
}

// ─── Model ───────────────────────────────────────────────────────────────────

var statusTimeout = 3 * time.Second

// listTop is the first terminal row holding a list item: the pane border
// plus the title line and its bottom padding.
const listTop = 3

type statusBarState struct {
	text    string
	id      int
	spinner spinner.Model
}

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptNote
	promptFind
)

// maxHits caps the results listed by the cross-list search.
const maxHits = 12

// promptState is the one-line input shown in the status bar, or in the
// search overlay for promptFind.
type promptState struct {
	kind   promptKind
	input  textinput.Model
	target int64 // person id for notes
	hits   []hit
	pick   int
}

// formState is the new/edit modal.
type formState struct {
	active bool
	id     int64 // 0 when creating
	fields []field
	inputs []textinput.Model
	focus  int
	err    string
}

type model struct {
	// Layout
	list     list.Model
	viewport viewport.Model
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool // true after first WindowSizeMsg

	// Preview rendering
	previewCache map[string]string // preview key → glamour-rendered markdown
	shownKey     string            // key of the preview in the viewport
	previewWidth int               // cached width for invalidation on resize
	prerendered  bool              // true after first render pass
	glamourStyle string            // "dark" or "light" based on terminal background

	// Data
	backend *backend
	screens []screen
	active  int
	hubMode bool
	cfg     config
	cfgPath string
	watcher *fsnotify.Watcher
	now     func() time.Time
	log     *zap.Logger
	loading bool

	// Cursor and gestures
	prevID    int64 // tracks cursor changes to trigger preview updates
	drag      int64 // record id under an active drag, 0 when none
	animating bool  // a frameTick is scheduled

	// Modals and transient state
	confirmDelete bool
	prompt        promptState
	form          formState
	status        statusBarState
}

func newModel(b *backend, screens []screen, cfg config, cfgPath string, watcher *fsnotify.Watcher, log *zap.Logger) model {
	if log == nil {
		log = zap.NewNop()
	}
	hubMode := len(screens) > 1

	l := list.New(nil, rowDelegate{gestures: screens[0].gestures(), cellPx: cfg.cellPx()}, 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.KeyMap.NextPage.SetKeys("right", "l", "pgdown")
	l.KeyMap.PrevPage.SetKeys("left", "h", "pgup")
	l.Styles.Title = lipgloss.NewStyle().Padding(0, 0, 0, 0)
	l.Styles.TitleBar = lipgloss.NewStyle().Padding(0, 1, 1, 2)

	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(colorDim)
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(colorDim)
	h.Styles.FullKey = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(10)
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(colorFull)
	h.Styles.FullSeparator = lipgloss.NewStyle()

	s := spinner.New()
	s.Spinner = spinner.Pulse
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 200
	ti.Width = 40

	style := "dark"
	if !lipgloss.HasDarkBackground() {
		style = "light"
	}

	m := model{
		list:         l,
		viewport:     viewport.New(0, 0),
		keys:         newKeyMap(hubMode),
		help:         h,
		previewCache: make(map[string]string),
		glamourStyle: style,
		backend:      b,
		screens:      screens,
		hubMode:      hubMode,
		cfg:          cfg,
		cfgPath:      cfgPath,
		watcher:      watcher,
		now:          time.Now,
		log:          log,
		loading:      true,
		prevID:       -1,
		status:       statusBarState{spinner: s},
		prompt:       promptState{input: ti},
	}
	m.restoreTitle()
	return m
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.watcher != nil && m.cfgPath != "" {
		cmds = append(cmds, watchConfig(m.watcher, m.cfgPath))
	}
	if m.hubMode {
		cmds = append(cmds, loadAll(m.backend))
	} else {
		cmds = append(cmds, m.cur().reload())
	}
	cmds = append(cmds, m.status.spinner.Tick)
	return tea.Batch(cmds...)
}

func (m model) cur() screen { return m.screens[m.active] }

func (m model) screenByName(name string) (screen, bool) {
	for _, s := range m.screens {
		if s.name() == name {
			return s, true
		}
	}
	return nil, false
}

// setStatus shows a transient message in the status bar with a spinner animation.
// If duration > 0, the message auto-clears after that time.
func (m *model) setStatus(text string, duration time.Duration) tea.Cmd {
	m.status.id++
	m.status.text = text
	id := m.status.id
	var cmds []tea.Cmd
	cmds = append(cmds, m.status.spinner.Tick)
	if duration > 0 {
		cmds = append(cmds, tea.Tick(duration, func(time.Time) tea.Msg {
			return statusClearMsg{id: id}
		}))
	}
	return tea.Batch(cmds...)
}

func (m *model) clearStatus() {
	m.status.text = ""
}

func (m *model) restoreTitle() {
	brand := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	tab := lipgloss.NewStyle().Bold(true)
	ghost := lipgloss.NewStyle().Foreground(colorDim)

	var tabs string
	if m.hubMode {
		parts := make([]string, len(m.screens))
		for i, s := range m.screens {
			label := strconv.Itoa(i+1) + " " + s.label()
			if i == m.active {
				parts[i] = tab.Render(label)
			} else {
				parts[i] = ghost.Render(label)
			}
		}
		tabs = strings.Join(parts, ghost.Render(" · "))
	}
	tabsW := lipgloss.Width(tabs)

	left := brand.Render("hubc")
	if !m.hubMode {
		left += " " + tab.Render(m.cur().label())
	}
	if m.backend != nil && m.backend.demo != nil {
		left += " " + ghost.Render("demo")
	}
	if at, off := m.cur().offlineSince(); off {
		stamp := "offline"
		if !at.IsZero() {
			stamp += " " + at.Local().Format("01-02 15:04")
		}
		left += " " + overdueStyle.Render(stamp)
	}
	q := m.cur().query()
	switch {
	case q.Filter.IsTag():
		left += " " + labelColor(string(q.Filter)).Render(string(q.Filter))
	case q.Filter != projection.FilterAll && q.Filter != "":
		left += " " + dateStyle.Render(string(q.Filter))
	}
	if q.Sort != projection.SortDate && q.Sort != "" {
		left += " " + dateStyle.Render("↕"+string(q.Sort))
	}
	if q.Search != "" {
		left += " " + dateStyle.Render("/"+q.Search)
	}

	maxW := m.list.Width() - 3 // TitleBar padding: left (2) + right (1)
	leftW := lipgloss.Width(left)
	avail := maxW - leftW - tabsW
	if tabs != "" && avail > 0 {
		m.list.Title = left + strings.Repeat(" ", avail) + tabs
	} else {
		m.list.Title = left
	}
}

func (m model) selectedRow() (row, bool) {
	r, ok := m.list.SelectedItem().(row)
	return r, ok
}

func (m model) selectedID() int64 {
	if r, ok := m.selectedRow(); ok {
		return r.id
	}
	return 0
}

// selectID moves the cursor to the row for id, or stays at the current
// index if id is not found (clamped to list length).
func (m *model) selectID(id int64) {
	for i, item := range m.list.Items() {
		if r, ok := item.(row); ok && r.id == id {
			m.list.Select(i)
			return
		}
	}
	if idx := m.list.Index(); idx >= len(m.list.Items()) && len(m.list.Items()) > 0 {
		m.list.Select(len(m.list.Items()) - 1)
	}
}

// refresh re-projects the current screen and keeps the cursor on the same
// record where possible. Rows that committed a swipe but are still listed
// (the mutation failed, or the toggled record still passes the filter) are
// brought back once nothing is in flight for them.
func (m *model) refresh() tea.Cmd {
	s := m.cur()
	id := m.selectedID()
	items := s.rows(m.now(), m.cfg.locale())
	m.list.SetItems(items)
	m.selectID(id)

	reg := s.gestures()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		r := item.(row)
		ids = append(ids, r.id)
		if c, ok := reg.Lookup(r.id); ok && c.Departed() && !s.busy(r.id) {
			c.Reset()
		}
	}
	reg.Prune(ids)
	m.restoreTitle()
	return m.syncPreview()
}

// switchTo makes screen i current.
func (m *model) switchTo(i int) tea.Cmd {
	if i < 0 || i >= len(m.screens) || i == m.active {
		return nil
	}
	if m.drag != 0 {
		if c, ok := m.cur().gestures().Lookup(m.drag); ok {
			c.Cancel()
		}
		m.drag = 0
	}
	m.active = i
	m.confirmDelete = false
	m.list.SetDelegate(rowDelegate{gestures: m.cur().gestures(), cellPx: m.cfg.cellPx()})
	m.list.SetItems(nil)
	m.list.ResetSelected()
	m.prevID = -1
	return tea.Batch(m.refresh(), m.startAnimation())
}

func (m model) previewW() int {
	return m.width - (m.width * 40 / 100) - 2
}

func previewKey(collection string, id int64, markdown string) string {
	h := fnv.New64a()
	h.Write([]byte(markdown))
	return collection + ":" + strconv.FormatInt(id, 10) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// syncPreview swaps the viewport to the selected record. Cached content is
// shown immediately; the rest is rendered by renderWindow.
func (m *model) syncPreview() tea.Cmd {
	m.prevID = m.selectedID()
	r, ok := m.selectedRow()
	if !ok {
		m.shownKey = ""
		m.viewport.SetContent("")
		return nil
	}
	md, _ := m.cur().markdown(r.id)
	key := previewKey(m.cur().name(), r.id, md)
	if key != m.shownKey {
		m.shownKey = key
		m.viewport.SetContent(m.previewCache[key])
		m.viewport.GotoTop()
	}
	return m.renderWindow()
}

// renderWindow renders the selected record plus a few neighbors (±2) if not
// cached, so they're warm by the time the user navigates to them.
func (m model) renderWindow() tea.Cmd {
	if !m.ready {
		return nil
	}
	items := m.list.Items()
	idx := m.list.Index()
	var cmds []tea.Cmd
	for i := idx - 2; i <= idx+2; i++ {
		if i < 0 || i >= len(items) {
			continue
		}
		r, ok := items[i].(row)
		if !ok {
			continue
		}
		md, ok := m.cur().markdown(r.id)
		if !ok {
			continue
		}
		key := previewKey(m.cur().name(), r.id, md)
		if _, cached := m.previewCache[key]; cached {
			continue
		}
		cmds = append(cmds, renderMarkdown(key, md, m.glamourStyle, m.previewW()))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

// px converts a terminal column to gesture pixels.
func (m model) px(col int) float64 {
	return float64(col) * m.cfg.cellPx()
}

// rowAt maps a terminal row inside the list pane to a list index.
func (m model) rowAt(y int) (int, row, bool) {
	i := y - listTop
	perPage := m.list.Paginator.PerPage
	if i < 0 || perPage <= 0 || i >= perPage {
		return 0, row{}, false
	}
	idx := m.list.Paginator.Page*perPage + i
	items := m.list.VisibleItems()
	if idx >= len(items) {
		return 0, row{}, false
	}
	r, ok := items[idx].(row)
	return idx, r, ok
}

// startAnimation schedules frames while any row is still moving.
func (m *model) startAnimation() tea.Cmd {
	if m.animating {
		return nil
	}
	for _, s := range m.screens {
		if s.gestures().Animating() {
			m.animating = true
			return frameTick()
		}
	}
	return nil
}

// act dispatches a key-driven action on the selected row.
func (m *model) act(kind gesture.Kind) tea.Cmd {
	r, ok := m.selectedRow()
	if !ok {
		return nil
	}
	return m.cur().dispatch(gesture.Intent{Kind: kind, RecordID: r.id})
}

// ─── Forms and Prompts ───────────────────────────────────────────────────────

func (m *model) openForm(id int64) tea.Cmd {
	s := m.cur()
	fields := s.formFields()
	values := s.formValues(id)
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = f.placeholder
		ti.CharLimit = f.limit
		ti.Width = 48
		ti.SetValue(values[i])
		ti.CursorEnd()
		inputs[i] = ti
	}
	m.form = formState{active: true, id: id, fields: fields, inputs: inputs}
	return m.focusField(0)
}

func (m *model) focusField(i int) tea.Cmd {
	n := len(m.form.inputs)
	if n == 0 {
		return nil
	}
	i = (i%n + n) % n
	for j := range m.form.inputs {
		m.form.inputs[j].Blur()
	}
	m.form.focus = i
	return m.form.inputs[i].Focus()
}

func (m *model) submitForm() tea.Cmd {
	values := make([]string, len(m.form.inputs))
	for i, ti := range m.form.inputs {
		values[i] = ti.Value()
	}
	s := m.cur()
	draft := s.buildDraft(m.form.id, values)
	if err := draft.Validate(); err != nil {
		m.form.err = err.Error()
		return nil
	}
	id := m.form.id
	m.form = formState{}
	return tea.Batch(m.setStatus("Saving...", 0), s.submit(id, draft))
}

func (m model) handleFormKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.form = formState{}
		return m, nil
	case "tab", "down":
		return m, m.focusField(m.form.focus + 1)
	case "shift+tab", "up":
		return m, m.focusField(m.form.focus - 1)
	case "ctrl+s":
		return m, m.submitForm()
	case "enter":
		if m.form.focus < len(m.form.inputs)-1 {
			return m, m.focusField(m.form.focus + 1)
		}
		return m, m.submitForm()
	}
	m.form.err = ""
	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	return m, cmd
}

func (m *model) openPrompt(kind promptKind, value string, target int64) tea.Cmd {
	m.prompt.kind = kind
	m.prompt.target = target
	m.prompt.hits = nil
	m.prompt.pick = 0
	m.prompt.input.SetValue(value)
	m.prompt.input.CursorEnd()
	return m.prompt.input.Focus()
}

func (m *model) closePrompt() {
	m.prompt.kind = promptNone
	m.prompt.input.Blur()
}

func (m model) handlePromptKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.prompt.kind == promptFind {
		return m.handleFindKey(msg)
	}
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		kind := m.prompt.kind
		m.closePrompt()
		if kind == promptSearch {
			m.cur().query().Search = ""
			return m, m.refresh()
		}
		return m, nil
	case tea.KeyEnter:
		kind, target := m.prompt.kind, m.prompt.target
		text := strings.TrimSpace(m.prompt.input.Value())
		m.closePrompt()
		if kind == promptNote && text != "" {
			return m, tea.Batch(m.setStatus("Saving note...", 0), addNote(m.backend, target, text))
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	if m.prompt.kind == promptSearch {
		m.cur().query().Search = m.prompt.input.Value()
		return m, tea.Batch(cmd, m.refresh())
	}
	return m, cmd
}

// handleFindKey drives the cross-list search: typing narrows the hits,
// up/down picks one, enter opens it on its own screen.
func (m model) handleFindKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closePrompt()
		return m, nil
	case "up", "ctrl+p":
		if m.prompt.pick > 0 {
			m.prompt.pick--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.prompt.pick < len(m.prompt.hits)-1 {
			m.prompt.pick++
		}
		return m, nil
	case "enter":
		if len(m.prompt.hits) == 0 {
			return m, nil
		}
		h := m.prompt.hits[m.prompt.pick]
		m.closePrompt()
		return m, m.jumpTo(h)
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	m.findAll()
	return m, cmd
}

// findAll refreshes the hits for the current input, in screen order.
func (m *model) findAll() {
	var hits []hit
	for _, s := range m.screens {
		hits = append(hits, s.find(m.prompt.input.Value(), m.now())...)
	}
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	m.prompt.hits = hits
	m.prompt.pick = 0
}

// jumpTo shows the record behind h: it switches to its screen, clears that
// screen's search and relaxes the filter if it would hide the record.
func (m *model) jumpTo(h hit) tea.Cmd {
	i := slices.IndexFunc(m.screens, func(s screen) bool { return s.name() == h.collection })
	if i < 0 {
		return nil
	}
	s := m.screens[i]
	q := s.query()
	q.Search = ""
	listed := func() bool {
		return slices.ContainsFunc(s.rows(m.now(), m.cfg.locale()), func(item list.Item) bool {
			return item.(row).id == h.id
		})
	}
	if !listed() {
		q.Filter = projection.FilterAll
		if !listed() {
			q.Filter = projection.FilterDone
			if !listed() {
				q.Filter = projection.FilterAll
			}
		}
	}

	var cmd tea.Cmd
	if i != m.active {
		cmd = m.switchTo(i)
	} else {
		cmd = m.refresh()
	}
	m.selectID(h.id)
	return tea.Batch(cmd, m.syncPreview())
}

// ─── Modal Key Handlers ──────────────────────────────────────────────────────

func (m model) handleDeleteConfirm(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "y":
		m.confirmDelete = false
		m.clearStatus()
		return m, m.act(gesture.Delete)
	case "n", "esc", "q":
		m.confirmDelete = false
		m.clearStatus()
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// cycleFilter steps through the screen's builtin filters.
func (m *model) cycleFilter() tea.Cmd {
	keys := m.cur().filterKeys()
	if len(keys) < 2 {
		return nil
	}
	q := m.cur().query()
	idx := slices.Index(keys, q.Filter)
	q.Filter = keys[(idx+1)%len(keys)]
	m.list.ResetSelected()
	return m.refresh()
}

// cycleTag steps through the tags in use, with "no tag" between the ends.
func (m *model) cycleTag(forward bool) tea.Cmd {
	tags := m.cur().tags(m.cfg.locale())
	if len(tags) == 0 {
		return m.setStatus("No tags in "+strings.ToLower(m.cur().label()), statusTimeout)
	}
	q := m.cur().query()
	cur := ""
	if q.Filter.IsTag() {
		cur = string(q.Filter)
	}
	idx := slices.Index(tags, cur)
	next := ""
	if forward {
		if idx < len(tags)-1 {
			next = tags[idx+1]
		}
	} else {
		switch {
		case cur == "":
			next = tags[len(tags)-1]
		case idx > 0:
			next = tags[idx-1]
		}
	}
	if next == "" {
		q.Filter = projection.FilterAll
	} else {
		q.Filter = projection.FilterKey(next)
	}
	m.list.ResetSelected()
	return m.refresh()
}

// ─── Key Handling ─────────────────────────────────────────────────────────────

// handleKeyMsg processes keyboard input, returning handled=true for keys that
// should short-circuit Update and handled=false for keys that should fall
// through to list.Update for default navigation.
func (m model) handleKeyMsg(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	if m.form.active {
		mod, cmd := m.handleFormKey(msg)
		return mod, cmd, true
	}
	if m.prompt.kind != promptNone {
		mod, cmd := m.handlePromptKey(msg)
		return mod, cmd, true
	}

	// Help modal: swallow everything except ?, esc, q
	if m.help.ShowAll {
		switch {
		case key.Matches(msg, m.keys.Help) || msg.String() == "esc":
			m.help.ShowAll = false
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
			return m, tea.Quit, true
		}
		return m, nil, true
	}

	if m.confirmDelete {
		mod, cmd := m.handleDeleteConfirm(msg)
		return mod, cmd, true
	}

	// Space / B scroll the preview from the list
	switch {
	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil, true
	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil, true
	}

	s := m.cur()
	switch {
	case key.Matches(msg, m.keys.ForceQuit), key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = true
		return m, nil, true
	case key.Matches(msg, m.keys.Settings):
		exe, err := os.Executable()
		if err != nil {
			return m, func() tea.Msg { return errMsg{fmt.Errorf("could not find executable: %w", err)} }, true
		}
		c := exec.Command(exe, "setup", "--config", m.cfgPath)
		return m, tea.ExecProcess(c, func(err error) tea.Msg {
			if err != nil {
				return errMsg{fmt.Errorf("setup failed: %w", err)}
			}
			return configUpdatedMsg{}
		}), true
	case key.Matches(msg, m.keys.NextScreen):
		step := 1
		if msg.String() == "shift+tab" {
			step = len(m.screens) - 1
		}
		return m, m.switchTo((m.active + step) % len(m.screens)), true
	case key.Matches(msg, m.keys.Screen):
		return m, m.switchTo(int(msg.Runes[0] - '1')), true
	case msg.String() == "esc":
		q := s.query()
		if q.Filter != projection.FilterAll || q.Search != "" {
			q.Filter = projection.FilterAll
			q.Search = ""
			m.list.ResetSelected()
			return m, m.refresh(), true
		}
		return m, nil, true
	case key.Matches(msg, m.keys.Filter):
		return m, m.cycleFilter(), true
	case key.Matches(msg, m.keys.NextTag), key.Matches(msg, m.keys.PrevTag):
		return m, m.cycleTag(key.Matches(msg, m.keys.NextTag)), true
	case key.Matches(msg, m.keys.Sort):
		q := s.query()
		q.Sort = q.Sort.Next()
		return m, m.refresh(), true
	case key.Matches(msg, m.keys.Search):
		return m, m.openPrompt(promptSearch, s.query().Search, 0), true
	case key.Matches(msg, m.keys.Find):
		return m, m.openPrompt(promptFind, "", 0), true
	case key.Matches(msg, m.keys.Reload):
		return m, tea.Batch(m.setStatus("Reloading...", 0), s.reload()), true
	case key.Matches(msg, m.keys.New):
		return m, m.openForm(0), true
	}

	r, ok := m.selectedRow()
	if !ok {
		return m, nil, false
	}
	switch {
	case key.Matches(msg, m.keys.Toggle):
		if !s.canToggle() {
			return m, nil, true
		}
		return m, m.act(gesture.Toggle), true
	case key.Matches(msg, m.keys.Delete):
		m.confirmDelete = true
		m.status.id++
		m.status.text = fmt.Sprintf("Delete %q? (y/n)", r.title)
		return m, m.status.spinner.Tick, true
	case key.Matches(msg, m.keys.Edit):
		return m, m.openForm(r.id), true
	case key.Matches(msg, m.keys.Note):
		if !s.canAnnotate() {
			return m, nil, true
		}
		return m, m.openPrompt(promptNote, "", r.id), true
	case key.Matches(msg, m.keys.Copy):
		if err := clipboard.WriteAll(r.title); err != nil {
			return m, func() tea.Msg { return errMsg{fmt.Errorf("clipboard: %w", err)} }, true
		}
		return m, m.setStatus("Copied: "+r.title, statusTimeout), true
	}

	// Not handled: fall through to list.Update for default navigation
	return m, nil, false
}

// ─── Mouse ───────────────────────────────────────────────────────────────────

// handleMouse maps wheel events to scrolling and a left-button drag on a
// row to that row's swipe controller.
func (m model) handleMouse(msg tea.MouseMsg) (model, tea.Cmd) {
	if m.form.active || m.help.ShowAll || m.confirmDelete || m.prompt.kind == promptFind {
		return m, nil
	}
	listW := m.width * 40 / 100
	reg := m.cur().gestures()

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			if msg.X < listW {
				m.list.CursorUp()
				return m, m.syncPreview()
			}
			m.viewport.LineUp(3)
			return m, nil
		case tea.MouseButtonWheelDown:
			if msg.X < listW {
				m.list.CursorDown()
				return m, m.syncPreview()
			}
			m.viewport.LineDown(3)
			return m, nil
		case tea.MouseButtonLeft:
			if msg.X >= listW {
				return m, nil
			}
			idx, r, ok := m.rowAt(msg.Y)
			if !ok {
				return m, nil
			}
			m.list.Select(idx)
			if reg.Get(r.id).Start(m.px(msg.X)) {
				m.drag = r.id
			}
			return m, m.syncPreview()
		}
	case tea.MouseActionMotion:
		if m.drag == 0 {
			return m, nil
		}
		if c, ok := reg.Lookup(m.drag); ok {
			c.Move(m.px(msg.X))
		}
		return m, nil
	case tea.MouseActionRelease:
		if m.drag == 0 {
			return m, nil
		}
		if c, ok := reg.Lookup(m.drag); ok {
			c.Move(m.px(msg.X))
			c.End()
		}
		m.drag = 0
		return m, m.startAnimation()
	}
	return m, nil
}

// ─── Update ──────────────────────────────────────────────────────────────────

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		mod, cmd, handled := m.handleKeyMsg(msg)
		m = mod
		if handled {
			return m, cmd
		}

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		listW := m.width * 40 / 100
		innerListW := listW - 2
		innerPreviewW := m.previewW()
		innerH := m.height - 3 // -2 for borders, -1 for hint bar

		if innerListW < 10 {
			innerListW = 10
		}
		if innerPreviewW < 10 {
			innerPreviewW = 10
		}
		if innerH < 5 {
			innerH = 5
		}

		m.list.SetSize(innerListW, innerH)
		m.viewport.Width = innerPreviewW
		m.viewport.Height = innerH - 1
		m.restoreTitle()

		if !m.prerendered || m.previewWidth != innerPreviewW {
			m.prerendered = true
			m.previewWidth = innerPreviewW
			m.previewCache = make(map[string]string)
			m.shownKey = ""
			cmds = append(cmds, m.syncPreview())
		}
		return m, tea.Batch(cmds...)

	case previewMsg:
		m.previewCache[msg.key] = msg.content
		if msg.key == m.shownKey {
			off := m.viewport.YOffset
			m.viewport.SetContent(msg.content)
			m.viewport.SetYOffset(off)
		}
		return m, nil

	case hubLoadedMsg:
		if msg.err != nil {
			// Fall back to one reload per collection so each can use its
			// own snapshot.
			m.log.Warn("hub load failed", zap.Error(msg.err))
			for _, s := range m.screens {
				cmds = append(cmds, s.reload())
			}
			return m, tea.Batch(cmds...)
		}
		m.loading = false
		m.clearStatus()
		for _, s := range m.screens {
			s.setOffline(false, time.Time{})
		}
		return m, m.refresh()

	case reloadedMsg:
		s, ok := m.screenByName(msg.collection)
		if !ok {
			return m, nil
		}
		m.loading = false
		switch {
		case msg.offline:
			s.setOffline(true, msg.savedAt)
			cmds = append(cmds, m.setStatus("Offline: showing the last saved list", statusTimeout))
		case msg.err != nil:
			cmds = append(cmds, m.setStatus("Error: "+describeErr(msg.err), statusTimeout))
		default:
			s.setOffline(false, time.Time{})
			m.clearStatus()
		}
		if s.idle() {
			s.gestures().ResetDeparted()
		}
		if s == m.cur() {
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case intentDoneMsg:
		s, ok := m.screenByName(msg.collection)
		if !ok {
			return m, nil
		}
		s.settle(msg.intent.RecordID)
		if (msg.err != nil || msg.skipped) && !s.busy(msg.intent.RecordID) {
			if c, ok := s.gestures().Lookup(msg.intent.RecordID); ok && c.Departed() {
				c.Reset()
			}
		}
		switch {
		case msg.err != nil:
			cmds = append(cmds, m.setStatus("Error: "+describeErr(msg.err), statusTimeout))
		case msg.skipped:
		case msg.intent.Kind == gesture.Delete:
			cmds = append(cmds, m.setStatus("Deleted", statusTimeout))
		case msg.intent.Kind == gesture.Toggle:
			text := "Updated"
			if title, ok := s.title(msg.intent.RecordID); ok {
				text = fmt.Sprintf("Updated %q", title)
			}
			cmds = append(cmds, m.setStatus(text, statusTimeout))
		}
		if s == m.cur() {
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case savedMsg:
		if msg.err != nil {
			return m, m.setStatus("Error: "+describeErr(msg.err), statusTimeout)
		}
		text := "Saved"
		if msg.created {
			text = "Created"
		}
		cmds = append(cmds, m.setStatus(text, statusTimeout))
		if s, ok := m.screenByName(msg.collection); ok && s == m.cur() {
			cmds = append(cmds, m.refresh())
			m.selectID(msg.id)
			cmds = append(cmds, m.syncPreview())
		}
		return m, tea.Batch(cmds...)

	case noteAddedMsg:
		if msg.err != nil {
			return m, m.setStatus("Error: "+describeErr(msg.err), statusTimeout)
		}
		cmds = append(cmds, m.setStatus("Note added", statusTimeout))
		if s, ok := m.screenByName(api.People); ok {
			cmds = append(cmds, s.reload())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		m.animating = false
		moving := false
		for _, s := range m.screens {
			if s.gestures().Step() {
				moving = true
			}
			for _, in := range s.drain() {
				m.log.Debug("swipe committed",
					zap.String("collection", s.name()),
					zap.String("kind", string(in.Kind)),
					zap.Int64("record_id", in.RecordID),
					zap.Uint64("seq", in.Seq))
				cmds = append(cmds, s.dispatch(in))
			}
		}
		if moving {
			m.animating = true
			cmds = append(cmds, frameTick())
		}
		return m, tea.Batch(cmds...)

	case configChangedMsg, configUpdatedMsg:
		cmds = append(cmds, m.reloadConfig())
		if _, watched := msg.(configChangedMsg); watched && m.watcher != nil {
			cmds = append(cmds, watchConfig(m.watcher, m.cfgPath))
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if m.status.text != "" {
			var cmd tea.Cmd
			m.status.spinner, cmd = m.status.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case statusClearMsg:
		if msg.id == m.status.id {
			m.clearStatus()
		}
		return m, nil

	case errMsg:
		return m, m.setStatus(fmt.Sprintf("Error: %v", msg.err), statusTimeout)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)

	// On cursor change, swap the preview to the newly selected record.
	if m.selectedID() != m.prevID {
		cmds = append(cmds, m.syncPreview())
	}
	return m, tea.Batch(cmds...)
}

// reloadConfig re-reads the config file and applies what can change live.
func (m *model) reloadConfig() tea.Cmd {
	cfg, _, err := loadConfig(m.cfgPath)
	if err != nil {
		return m.setStatus("Error: "+err.Error(), statusTimeout)
	}
	restart := cfg.APIURL != m.cfg.APIURL || cfg.UserID != m.cfg.UserID
	m.cfg = cfg
	m.list.SetDelegate(rowDelegate{gestures: m.cur().gestures(), cellPx: cfg.cellPx()})
	text := "Config reloaded"
	if restart && (m.backend == nil || m.backend.demo == nil) {
		text += " (restart to switch backend)"
	}
	return tea.Batch(m.setStatus(text, statusTimeout), m.refresh())
}

// describeErr turns a backend error into a status bar line.
func describeErr(err error) string {
	var he *api.HTTPError
	switch {
	case errors.Is(err, api.ErrNoConnection):
		return "no connection to server"
	case errors.Is(err, api.ErrTimeout):
		return "request timed out"
	case errors.As(err, &he):
		return he.Error()
	}
	return err.Error()
}
