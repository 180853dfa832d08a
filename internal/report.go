package internal

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/study/internal/deps"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

var countColumns = []columnAlignment{alignLeft, alignRight, alignRight, alignRight}

func writeCounts(w io.Writer, c pipeline.Counts) {
	itoa := strconv.Itoa
	rows := [][]string{
		{"transcripts", itoa(c.TranscriptsSaved), itoa(c.TranscriptsSkipped), itoa(c.TranscriptsFailed)},
		{"enrichment", itoa(c.Enriched), "", itoa(c.EnrichFailed)},
		{"notes", itoa(c.NotesGenerated), itoa(c.NotesSkipped), itoa(c.NotesFailed)},
	}
	fmt.Fprintln(w, renderTable("Run summary", []string{"Stage", "Done", "Skipped", "Failed"}, rows, countColumns))
}

func writeSync(w io.Writer, r index.SyncResult) {
	itoa := strconv.Itoa
	rows := [][]string{{itoa(r.Indexed), itoa(r.Unchanged), itoa(r.Removed), itoa(r.Failed)}}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight}
	fmt.Fprintln(w, renderTable("Index", []string{"Indexed", "Unchanged", "Removed", "Failed"}, rows, aligns))
}

func writeDeps(w io.Writer, statuses []deps.Status) {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		switch {
		case !s.Available && s.Optional:
			state = "missing (optional)"
		case !s.Available:
			state = "missing"
		}
		where := s.Path
		if where == "" {
			where = s.Detail
		}
		rows = append(rows, []string{s.Name, state, where})
	}
	fmt.Fprintln(w, renderTable("Dependencies", []string{"Tool", "Status", "Path"}, rows, nil))
}
