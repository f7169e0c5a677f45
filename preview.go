package main

import (
	"fmt"
	"strings"

	"github.com/jakebf/hubc/internal/record"
)

// ─── Preview Markdown ────────────────────────────────────────────────────────
//
// Each record is shown in the preview pane as a small markdown document,
// rendered by glamour like any other content.

func taskMarkdown(t record.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	status := "open"
	if t.IsDone() {
		status = "done"
	}
	deadline := t.Deadline
	if deadline == "" {
		deadline = "none"
	}
	fmt.Fprintf(&b, "**Status:** %s · **Priority:** %s · **Deadline:** %s\n\n", status, t.Priority.Label(), deadline)
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	return b.String()
}

func personMarkdown(p record.Person) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.FIO)
	fields := []struct{ name, value string }{
		{"Relation", p.Data.Relation},
		{"Birth date", p.Data.BirthDate},
		{"Workplace", p.Data.Workplace},
		{"Financial", p.Data.Financial},
		{"Strengths", p.Data.Strengths},
		{"Weaknesses", p.Data.Weaknesses},
		{"Benefits", p.Data.Benefits},
		{"Problems", p.Data.Problems},
		{"Groups", strings.Join(p.Data.Groups, ", ")},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "- **%s:** %s\n", f.name, f.value)
		}
	}
	if len(p.Notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range p.Notes {
			if n.CreatedAt != "" {
				fmt.Fprintf(&b, "- *%s* %s\n", shortStamp(n.CreatedAt), n.Text)
			} else {
				fmt.Fprintf(&b, "- %s\n", n.Text)
			}
		}
	}
	return b.String()
}

func knowledgeMarkdown(k record.Knowledge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", k.Title)
	if len(k.Tags) > 0 {
		tags := make([]string, len(k.Tags))
		for i, t := range k.Tags {
			tags[i] = "`" + t + "`"
		}
		b.WriteString(strings.Join(tags, " "))
		b.WriteString("\n\n")
	}
	b.WriteString(k.Content)
	b.WriteString("\n")
	return b.String()
}

// shortStamp trims a backend timestamp to its date.
func shortStamp(s string) string {
	if len(s) > len(record.DateLayout) {
		return s[:len(record.DateLayout)]
	}
	return s
}
