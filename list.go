package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/dispatch"
	"github.com/jakebf/hubc/internal/projection"
	"github.com/jakebf/hubc/internal/record"
)

var (
	doneColor    = color.New(color.Faint, color.CrossedOut)
	overdueColor = color.New(color.FgRed)
	highColor    = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

func addList(topLevel *cobra.Command, opts *rootOptions) {
	var filter, sortKey, search string
	cmd := &cobra.Command{
		Use:       "list <collection>",
		Short:     "Print a collection as a table.",
		ValidArgs: api.Collections,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Example: `
hubc list tasks
hubc list tasks --filter today --sort priority
hubc list knowledge --filter go --search channels
hubc list people --search ivan
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, b, err := opts.prepare(false)
			if err != nil {
				return err
			}
			if filter == "" {
				filter = cfg.DefaultFilter
			}
			if sortKey == "" {
				sortKey = cfg.DefaultSort
			}
			q := projection.Query{
				Filter: projection.ParseFilter(filter),
				Sort:   projection.ParseSort(sortKey),
				Search: search,
				Now:    time.Now(),
				Locale: cfg.locale(),
			}
			lp := listPrinter{ctx: cmd.Context(), b: b, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), q: q}
			switch args[0] {
			case api.Tasks:
				return printList(lp, b.tasks, api.Tasks, taskColumns)
			case api.People:
				return printList(lp, b.people, api.People, personColumns)
			default:
				return printList(lp, b.knowledge, api.Knowledge, knowledgeColumns)
			}
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Builtin filter (today, tomorrow, week, month, high, done) or a tag.")
	cmd.Flags().StringVar(&sortKey, "sort", "", "Sort by date, priority or title.")
	cmd.Flags().StringVar(&search, "search", "", "Fuzzy search in titles and text.")
	topLevel.AddCommand(cmd)
}

type listPrinter struct {
	ctx    context.Context
	b      *backend
	out    io.Writer
	errOut io.Writer
	q      projection.Query
}

// printList fetches one collection, projects it and prints a table.
func printList[T record.Record](lp listPrinter, d *dispatch.Dispatcher[T], collection string, columns func(T, time.Time) []any) error {
	ctx := lp.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	savedAt, err := fetch(ctx, lp.b, d, collection)
	if err != nil && savedAt.IsZero() {
		return err
	}
	if !savedAt.IsZero() {
		fmt.Fprintf(lp.errOut, "offline: showing the list saved %s\n", savedAt.Local().Format("2006-01-02 15:04"))
	}
	rows := projection.Project(d.Store().Snapshot(), lp.q)
	if len(rows) == 0 {
		fmt.Fprintln(lp.errOut, "nothing matches")
		return nil
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	for _, r := range rows {
		tbl.AddRow(columns(r, lp.q.Now)...)
	}
	_, err = fmt.Fprintln(lp.out, tbl)
	return err
}

func taskColumns(t record.Task, now time.Time) []any {
	mark := "[ ]"
	title := t.Title
	if t.IsDone() {
		mark = "[x]"
		title = doneColor.Sprint(title)
	}
	deadline := t.Deadline
	if !t.IsDone() && deadline != "" && deadline < now.Format(record.DateLayout) {
		deadline = overdueColor.Sprint(deadline)
	}
	prio := t.Priority.Label()
	if t.Priority == record.PriorityHigh {
		prio = highColor.Sprint(prio)
	}
	return []any{t.ID, mark, title, deadline, prio}
}

func personColumns(p record.Person, _ time.Time) []any {
	return []any{p.ID, p.FIO, dimColor.Sprint(p.Data.Relation), strings.Join(p.Data.Groups, ", ")}
}

func knowledgeColumns(k record.Knowledge, _ time.Time) []any {
	return []any{k.ID, k.Title, strings.Join(k.Tags, ", "), dimColor.Sprint(shortStamp(k.CreatedAt))}
}
