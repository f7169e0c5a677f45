// Package projection turns a record snapshot plus the active filter, search
// and sort into the ordered list a screen displays. It is a pure transform:
// the input slice is never reordered and no state survives between calls.
package projection

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/jakebf/hubc/internal/record"
)

type FilterKey string

const (
	FilterAll      FilterKey = "all"
	FilterToday    FilterKey = "today"
	FilterTomorrow FilterKey = "tomorrow"
	FilterWeek     FilterKey = "week"
	FilterMonth    FilterKey = "month"
	FilterHigh     FilterKey = "high"
	FilterDone     FilterKey = "done"
)

// BuiltinFilters lists the non-tag filters in display order.
var BuiltinFilters = []FilterKey{FilterAll, FilterToday, FilterTomorrow, FilterWeek, FilterMonth, FilterHigh, FilterDone}

// IsTag reports whether k names a custom tag rather than a builtin filter.
func (k FilterKey) IsTag() bool {
	return !slices.Contains(BuiltinFilters, k)
}

// ParseFilter maps "" to all. Builtin names match in any case; anything
// else is a custom tag and is kept as written.
func ParseFilter(s string) FilterKey {
	s = strings.TrimSpace(s)
	if s == "" {
		return FilterAll
	}
	if k := FilterKey(strings.ToLower(s)); !k.IsTag() {
		return k
	}
	return FilterKey(s)
}

type SortKey string

const (
	SortDate     SortKey = "date"
	SortPriority SortKey = "priority"
	SortTitle    SortKey = "title"
)

var sortCycle = []SortKey{SortDate, SortPriority, SortTitle}

// ParseSort maps unknown values to date.
func ParseSort(s string) SortKey {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(sortCycle, k) {
		return k
	}
	return SortDate
}

// Next returns the following sort key in the date → priority → title cycle.
func (k SortKey) Next() SortKey {
	i := slices.Index(sortCycle, k)
	return sortCycle[(i+1)%len(sortCycle)]
}

// Query describes one projection.
type Query struct {
	Filter FilterKey
	Sort   SortKey
	Search string
	// Now anchors "today". The zero value means time.Now(), read once.
	Now time.Time
	// Locale drives title collation. The zero value means Russian, the
	// language the hub's data is written in.
	Locale language.Tag
}

// Project returns the records passing q's filter and search, ordered by q's
// sort. The result is a new slice; records is left untouched.
func Project[T record.Record](records []T, q Query) []T {
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}
	d := newDates(now)
	filter := q.Filter
	if filter == "" {
		filter = FilterAll
	}

	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r, filter, d) {
			out = append(out, r)
		}
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		out = search(out, s)
	}
	sortRecords(out, q)
	return out
}

// dates holds the date boundaries for one call so every record is compared
// against the same "today".
type dates struct {
	today, tomorrow, week, month string
}

func newDates(now time.Time) dates {
	y, m, dd := now.Date()
	base := time.Date(y, m, dd, 0, 0, 0, 0, now.Location())
	return dates{
		today:    base.Format(record.DateLayout),
		tomorrow: base.AddDate(0, 0, 1).Format(record.DateLayout),
		week:     base.AddDate(0, 0, 7).Format(record.DateLayout),
		month:    base.AddDate(0, 1, 0).Format(record.DateLayout),
	}
}

func isDone(r record.Record) bool {
	c, ok := r.(record.Completer)
	return ok && c.IsDone()
}

func due(r record.Record) string {
	if s, ok := r.(record.Scheduled); ok {
		return s.Due()
	}
	return ""
}

func keep(r record.Record, f FilterKey, d dates) bool {
	switch f {
	case FilterAll:
		return !isDone(r)
	case FilterDone:
		return isDone(r)
	case FilterToday:
		return !isDone(r) && due(r) == d.today
	case FilterTomorrow:
		return !isDone(r) && due(r) == d.tomorrow
	case FilterWeek:
		dl := due(r)
		return !isDone(r) && dl != "" && dl <= d.week
	case FilterMonth:
		dl := due(r)
		return !isDone(r) && dl != "" && dl <= d.month
	case FilterHigh:
		p, ok := r.(record.Prioritized)
		return !isDone(r) && ok && p.PriorityRank() == record.PriorityHigh.Rank()
	default:
		return hasTag(r, string(f))
	}
}

func hasTag(r record.Record, pattern string) bool {
	t, ok := r.(record.Tagged)
	if !ok {
		return false
	}
	for _, tag := range t.RecordTags() {
		if tag == pattern {
			return true
		}
		if matched, err := doublestar.Match(pattern, tag); err == nil && matched {
			return true
		}
	}
	return false
}

// searchSource adapts records to fuzzy.Source.
type searchSource[T record.Record] []T

func (s searchSource[T]) Len() int { return len(s) }

func (s searchSource[T]) String(i int) string {
	if st, ok := any(s[i]).(record.Searchable); ok {
		return st.SearchText()
	}
	return s[i].RecordTitle()
}

// Search returns the records matching query in their incoming order. No
// filter applies, so done records are included. An empty query matches
// nothing.
func Search[T record.Record](records []T, query string) []T {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return search(records, query)
}

// search keeps records whose text fuzzily matches query, preserving the
// incoming order (fuzzy ranks by score; the list keeps its own sort).
func search[T record.Record](records []T, query string) []T {
	matches := fuzzy.FindFrom(query, searchSource[T](records))
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Index
	}
	sort.Ints(idx)
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}

func sortRecords[T record.Record](records []T, q Query) {
	switch q.Sort {
	case SortPriority:
		slices.SortStableFunc(records, func(a, b T) int {
			return rank(b) - rank(a)
		})
	case SortTitle:
		loc := q.Locale
		if loc == language.Und {
			loc = language.Russian
		}
		c := collate.New(loc, collate.IgnoreCase)
		slices.SortStableFunc(records, func(a, b T) int {
			return c.CompareString(a.RecordTitle(), b.RecordTitle())
		})
	default:
		slices.SortStableFunc(records, func(a, b T) int {
			da, db := due(a), due(b)
			switch {
			case da == "" && db == "":
				return 0
			case da == "":
				return 1
			case db == "":
				return -1
			}
			return strings.Compare(da, db)
		})
	}
}

func rank(r record.Record) int {
	if p, ok := r.(record.Prioritized); ok {
		return p.PriorityRank()
	}
	return record.PriorityMedium.Rank()
}

// Tags returns the distinct tags across records, collated for display. It
// feeds the tag filter bar.
func Tags[T record.Record](records []T, locale language.Tag) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, r := range records {
		t, ok := any(r).(record.Tagged)
		if !ok {
			continue
		}
		for _, tag := range t.RecordTags() {
			if tag != "" && !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	if locale == language.Und {
		locale = language.Russian
	}
	collate.New(locale).SortStrings(tags)
	return tags
}
