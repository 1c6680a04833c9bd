package history

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderRuns writes runs as a table, newest first as given.
func RenderRuns(w io.Writer, runs []Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Policy", "Period", "Total", "Checked", "Carried", "Failed", "Done", "Not Done", "Unknown"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.Policy,
			r.Period,
			r.Total,
			r.Checked,
			r.Carried,
			r.Failed,
			r.Done,
			r.NotDone,
			r.Unknown,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "", "", "", "Runs", len(runs)})
	t.Render()
}

// RenderEntries writes one card's status history as a table.
func RenderEntries(w io.Writer, entries []Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Checked", "Run", "Card", "Status", "Quantity"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.CheckedAt.Local().Format("2006-01-02 15:04"),
			shortID(e.RunID),
			e.CardNo,
			string(e.Status),
			e.Quantity,
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
