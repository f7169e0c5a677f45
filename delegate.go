package main

import (
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jakebf/hubc/internal/gesture"
	"github.com/jakebf/hubc/internal/record"
)

// ─── Custom Delegate ─────────────────────────────────────────────────────────

var (
	highStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	mediumStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	lowStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	doneStyle    = lipgloss.NewStyle().Foreground(colorDim)
	dateStyle    = lipgloss.NewStyle().Foreground(colorDim)
	overdueStyle = lipgloss.NewStyle().Foreground(colorRed)
	selectedBar  = lipgloss.NewStyle().Foreground(colorAccent).SetString("│ ")
	normalBar    = lipgloss.NewStyle().SetString("  ")

	deleteHintStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlack).Background(colorRed)
	toggleHintStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlack).Background(colorGreen)
	trackHintStyle  = lipgloss.NewStyle().Background(colorTrack)
)

// labelColors are 256-color palette values chosen for readable contrast
// on dark terminals. Avoids black, white, grays, and overly dim colors.
// Prime-length palette for better hash distribution.
var labelColors = []string{
	"204", "209", "215", "179", "149", "114", "80", "75", "111",
	"147", "183", "176", "168", "131", "173", "137", "109", "73",
	"167", "143", "103", "69", "212",
}

// labelColor returns a consistent lipgloss.Style for a tag or group name,
// derived from FNV-1a hash for good distribution with short strings.
func labelColor(name string) lipgloss.Style {
	h := fnv.New32a()
	h.Write([]byte(name))
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(labelColors[h.Sum32()%uint32(len(labelColors))]))
}

// ─── Rows ────────────────────────────────────────────────────────────────────

// shortDate shows MM-DD for the current year, full YYYY-MM-DD otherwise.
func shortDate(date string, now time.Time) string {
	if len(date) < len(record.DateLayout) {
		return date
	}
	date = date[:len(record.DateLayout)]
	year := strconv.Itoa(now.Year())
	if rest, ok := strings.CutPrefix(date, year+"-"); ok {
		return rest
	}
	return date
}

func taskRow(t record.Task, now time.Time) row {
	r := row{id: t.ID, title: t.Title, done: t.IsDone(), priority: t.Priority}
	switch {
	case t.IsDone():
		r.badge = doneStyle.Render("✓")
	case t.Priority == record.PriorityHigh:
		r.badge = highStyle.Render("●")
	case t.Priority == record.PriorityLow:
		r.badge = lowStyle.Render("○")
	default:
		r.badge = mediumStyle.Render("●")
	}
	if t.Deadline != "" {
		r.meta = shortDate(t.Deadline, now)
		r.overdue = !t.IsDone() && t.Deadline < now.Format(record.DateLayout)
	}
	return r
}

func personRow(p record.Person, now time.Time) row {
	r := row{id: p.ID, title: p.FIO, tags: p.Data.Groups, meta: p.Data.Relation}
	r.badge = labelColor(p.FIO).Render(p.Initials())
	return r
}

func knowledgeRow(k record.Knowledge, now time.Time) row {
	r := row{id: k.ID, title: k.Title, tags: k.Tags, badge: dateStyle.Render("≡")}
	if k.CreatedAt != "" {
		r.meta = shortDate(k.CreatedAt, now)
	}
	return r
}

// ─── Delegate ────────────────────────────────────────────────────────────────

// rowDelegate renders one row per line and slides it by its swipe offset.
type rowDelegate struct {
	gestures *gesture.Registry
	cellPx   float64
}

func (d rowDelegate) Height() int                             { return 1 }
func (d rowDelegate) Spacing() int                            { return 0 }
func (d rowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	width := m.Width()
	line := renderRow(r, index == m.Index(), width)
	if d.gestures != nil {
		if c, ok := d.gestures.Lookup(r.id); ok && c.Offset() != 0 {
			line = slideRow(line, c.Offset()/d.cellPx, c.Indicator(), width)
		}
	}
	fmt.Fprint(w, line)
}

func renderRow(r row, isCursor bool, width int) string {
	bar := normalBar
	if isCursor {
		bar = selectedBar
	}

	maxW := width - 3 // -2 for bar prefix, -1 for right padding
	if maxW < 10 {
		maxW = 10
	}

	badge := r.badge
	badgeW := lipgloss.Width(badge)

	date := r.meta
	dateW := 0
	if date != "" {
		dateW = lipgloss.Width(date) + 1 // +1 for leading space
	}

	// Build tag prefix and title, truncating trailing tags if needed.
	avail := maxW - badgeW - dateW
	minTitle := 10 // reserve at least this much for the title
	var visibleTags []string
	tagPrefixW := 1 // leading space
	if len(r.tags) > 0 && avail > minTitle {
		w := 2
		for i, l := range r.tags {
			lw := lipgloss.Width(l)
			sep := 0
			if i > 0 {
				sep = 1
			}
			extra := 0
			if i < len(r.tags)-1 {
				extra = 3 // room for " +N" suffix
			}
			if w+sep+lw+extra+minTitle > avail {
				more := fmt.Sprintf("+%d", len(r.tags)-i)
				visibleTags = append(visibleTags, more)
				w += sep + lipgloss.Width(more)
				break
			}
			visibleTags = append(visibleTags, l)
			w += sep + lw
		}
		tagPrefixW = w
	}

	title := r.title
	plainW := tagPrefixW + lipgloss.Width(title)
	if avail > 0 && plainW > avail {
		titleAvail := avail - tagPrefixW
		if titleAvail > 1 {
			title = ansi.Truncate(title, titleAvail, "…")
		} else {
			title = "…"
		}
		plainW = tagPrefixW + lipgloss.Width(title)
	}
	pad := ""
	if avail > 0 && plainW < avail {
		pad = strings.Repeat(" ", avail-plainW)
	}

	if r.done {
		title = doneStyle.Strikethrough(true).Render(title)
	}

	styledText := " " + title + pad
	if len(visibleTags) > 0 {
		var styledTags []string
		for _, l := range visibleTags {
			if strings.HasPrefix(l, "+") {
				styledTags = append(styledTags, dateStyle.Render(l))
			} else {
				styledTags = append(styledTags, labelColor(l).Render(l))
			}
		}
		styledText = " " + strings.Join(styledTags, " ") + " " + title + pad
	}

	meta := ""
	if date != "" {
		st := dateStyle
		if r.overdue {
			st = overdueStyle
		}
		meta = " " + st.Render(date)
	}
	return bar.String() + badge + styledText + meta
}

// slideRow shifts a rendered line by cols terminal columns and fills the
// uncovered side with the action hint. Positive cols move right.
func slideRow(line string, cols float64, ind gesture.Indicator, width int) string {
	n := int(math.Round(cols))
	if n == 0 || width <= 0 {
		return line
	}
	if n > width {
		n = width
	}
	if n < -width {
		n = -width
	}
	if n > 0 {
		return hintCell(ind, n, false) + ansi.Truncate(line, width-n, "")
	}
	n = -n
	visible := ansi.Cut(line, n, width)
	if gap := width - n - ansi.StringWidth(visible); gap > 0 {
		visible += strings.Repeat(" ", gap)
	}
	return visible + hintCell(ind, n, true)
}

// hintCell renders the action hint into exactly w columns.
func hintCell(ind gesture.Indicator, w int, alignRight bool) string {
	var text string
	style := trackHintStyle
	switch ind {
	case gesture.IndicatorDelete:
		text, style = " ✗ delete ", deleteHintStyle
	case gesture.IndicatorToggle:
		text, style = " ✓ done ", toggleHintStyle
	}
	text = ansi.Truncate(text, w, "")
	if gap := w - ansi.StringWidth(text); gap > 0 {
		if alignRight {
			text = strings.Repeat(" ", gap) + text
		} else {
			text += strings.Repeat(" ", gap)
		}
	}
	return style.Render(text)
}
