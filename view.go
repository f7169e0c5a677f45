package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ─── Colors ──────────────────────────────────────────────────────────────────

var (
	colorBlack   = lipgloss.Color("0")
	colorAccent  = lipgloss.Color("5")   // magenta: brand, borders, keys
	colorDim     = lipgloss.Color("8")   // gray: secondary text
	colorFull    = lipgloss.Color("7")   // white: full help descriptions
	colorRed     = lipgloss.Color("9")   // delete hint, overdue, high priority
	colorGreen   = lipgloss.Color("10")  // done hint, welcome checkmark
	colorYellow  = lipgloss.Color("11")  // medium priority
	colorMagenta = lipgloss.Color("13")  // status bar messages
	colorTrack   = lipgloss.Color("236") // background behind a dragged row
)

// ─── Styles ──────────────────────────────────────────────────────────────────

var (
	paneBorder     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent)
	previewBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim)
	paneTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	helpTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	helpBoxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 3)
	statusTextStyle = lipgloss.NewStyle().Bold(true).Foreground(colorMagenta)
	formLabelStyle  = lipgloss.NewStyle().Foreground(colorDim).Width(13)
	formFocusStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(13)
	formErrStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

func truncateForWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	limit := maxWidth - 1
	var b strings.Builder
	width := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if width+rw > limit {
			break
		}
		b.WriteRune(r)
		width += rw
	}
	return b.String() + "…"
}

// overlay centers box over the whole terminal.
func (m model) overlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(colorBlack),
	)
}

// modalWidth keeps modals comfortably narrow on wide terminals while still
// fitting on small screens.
func (m model) modalWidth(max int) (modalW, contentW int) {
	modalW = m.width - 4
	if modalW > max {
		modalW = max
	}
	if modalW < 20 {
		modalW = 20
	}
	// helpBoxStyle uses 1-cell borders and 3-cell horizontal padding.
	contentW = modalW - 8
	if contentW < 12 {
		contentW = 12
	}
	return modalW, contentW
}

func (m model) emptyHint() (string, bool) {
	if len(m.list.Items()) > 0 {
		return "", false
	}
	s := m.cur()
	label := strings.ToLower(s.label())
	switch {
	case m.loading && s.loaded() == 0:
		return "Loading " + label + "...", true
	case s.loaded() == 0:
		return "No " + label + " yet\n\nn  create one\nr  reload", true
	}
	msg := "Nothing matches"
	q := s.query()
	if q.Search != "" {
		msg += "\n\nsearch: " + q.Search
	} else {
		msg += "\n\nfilter: " + string(q.Filter)
	}
	return msg + "\n\nesc  clear filters", true
}

func (m model) formView() string {
	modalW, contentW := m.modalWidth(72)
	verb := "New "
	if m.form.id != 0 {
		verb = "Edit "
	}
	noun := strings.ToLower(strings.TrimSuffix(m.cur().label(), "s"))
	if m.cur().name() == "people" {
		noun = "person"
	}

	var b strings.Builder
	b.WriteString(helpTitleStyle.Render(verb + noun))
	b.WriteString("\n")
	for i, f := range m.form.fields {
		label := formLabelStyle.Render(f.label)
		if i == m.form.focus {
			label = formFocusStyle.Render(f.label)
		}
		b.WriteString(label + m.form.inputs[i].View() + "\n")
	}
	if m.form.err != "" {
		b.WriteString("\n" + formErrStyle.Render(m.form.err) + "\n")
	}
	b.WriteString("\n" + lipgloss.NewStyle().Foreground(colorDim).
		Render("tab next  ·  enter save  ·  esc cancel"))

	content := lipgloss.NewStyle().MaxWidth(contentW).Render(b.String())
	return m.overlay(helpBoxStyle.MaxWidth(modalW).Render(content))
}

// findView is the cross-list search overlay.
func (m model) findView() string {
	modalW, contentW := m.modalWidth(72)
	dim := lipgloss.NewStyle().Foreground(colorDim)
	pick := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("Search all lists"))
	b.WriteString("\n")
	b.WriteString(pick.Render("/") + m.prompt.input.View() + "\n\n")
	switch {
	case strings.TrimSpace(m.prompt.input.Value()) == "":
		b.WriteString(dim.Render("Type to search tasks, people and knowledge") + "\n")
	case len(m.prompt.hits) == 0:
		b.WriteString(dim.Render("Nothing found") + "\n")
	}
	for i, h := range m.prompt.hits {
		kind := h.collection
		if s, ok := m.screenByName(h.collection); ok {
			kind = s.label()
		}
		title := truncateForWidth(h.title, contentW-15)
		line := "  " + formLabelStyle.Render(kind) + title
		if i == m.prompt.pick {
			line = pick.Render("› ") + formFocusStyle.Render(kind) + pick.Render(title)
		}
		if h.meta != "" && lipgloss.Width(line)+2+lipgloss.Width(h.meta) <= contentW {
			line += "  " + dim.Render(h.meta)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dim.Render("↑/↓ choose  ·  enter open  ·  esc close"))

	content := lipgloss.NewStyle().MaxWidth(contentW).Render(b.String())
	return m.overlay(helpBoxStyle.MaxWidth(modalW).Render(content))
}

// ─── View ────────────────────────────────────────────────────────────────────

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.form.active {
		return m.formView()
	}
	if m.prompt.kind == promptFind {
		return m.findView()
	}

	// 40/60 split: list pane gets 40% of terminal width, preview gets the rest.
	listW := m.width * 40 / 100
	previewW := m.width - listW

	innerH := m.height - 3 // -2 for borders, -1 for hint bar

	leftStyle := paneBorder.Width(listW - 2).Height(innerH)
	rightStyle := previewBorder.Width(previewW - 2).Height(innerH)

	leftContent := m.list.View()
	if msg, empty := m.emptyHint(); empty {
		// Keep the title so the tabs and filter stay visible.
		hint := lipgloss.NewStyle().Foreground(colorDim).
			Width(listW - 4).Align(lipgloss.Center).
			Render(msg)
		title := m.list.Styles.TitleBar.Render(m.list.Title)
		leftContent = title + "\n" + lipgloss.Place(listW-2, innerH-lipgloss.Height(title)-1, lipgloss.Center, lipgloss.Center, hint)
	}
	previewTitle := ""
	if r, ok := m.selectedRow(); ok {
		previewTitle = paneTitleStyle.Render(truncateForWidth(r.title, previewW-4))
	}
	rightContent := previewTitle + "\n" + m.viewport.View()

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftStyle.Render(leftContent),
		rightStyle.Render(rightContent),
	)

	hintStyle := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle := lipgloss.NewStyle().Foreground(colorDim)
	var statusBar string
	switch {
	case m.prompt.kind == promptSearch:
		statusBar = " " + hintStyle.Render("/") + m.prompt.input.View() + "  " +
			dimStyle.Render("enter keep · esc clear")
	case m.prompt.kind == promptNote:
		statusBar = " note: " + m.prompt.input.View() + "  " +
			dimStyle.Render("enter save · esc cancel")
	case m.status.text != "":
		statusBar = " " + m.status.spinner.View() + " " + statusTextStyle.Render(truncateForWidth(m.status.text, m.width-4))
	default:
		statusBar = " " + m.help.ShortHelpView(m.keys.ShortHelp())
	}
	base := panes + "\n" + statusBar

	if m.help.ShowAll {
		modalW, contentW := m.modalWidth(76)
		content := helpTitleStyle.Render("Keybindings") + "\n" + m.help.FullHelpView(m.keys.FullHelp()) +
			"\n\n" + dimStyle.Render("Drag a row left to delete, right to mark done.")
		content = lipgloss.NewStyle().MaxWidth(contentW).Render(content)
		base = m.overlay(helpBoxStyle.MaxWidth(modalW).Render(content))
	}

	return base
}
