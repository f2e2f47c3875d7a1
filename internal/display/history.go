package display

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/harrison/resultsync/internal/models"
)

// RenderHistory prints recorded exports, in the given order, as a table.
func RenderHistory(w io.Writer, exports []models.ExportSummary, colored bool) {
	if len(exports) == 0 {
		fmt.Fprintln(w, "No exports recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Export History")
	t.AppendHeader(table.Row{"Exported", "Page", "Source", "Created", "Updated", "Skipped", "Reqs", "Mode", "Duration", "Run"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Page", AutoMerge: true},
		{Name: "Source", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Created", Align: text.AlignRight},
		{Name: "Updated", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Reqs", Align: text.AlignRight},
		{Name: "Duration", Align: text.AlignRight},
	})

	var created, updated, skipped int
	for _, e := range exports {
		created += e.Created
		updated += e.Updated
		skipped += e.Skipped

		t.AppendRow(table.Row{
			e.ExportedAt.Local().Format("2006-01-02 15:04:05"),
			pageLabel(e),
			e.SourceFile,
			e.Created,
			e.Updated,
			e.Skipped,
			e.Requirements,
			exportMode(e),
			formatDuration(e.Duration),
			e.RunID,
		})
	}

	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("%d exports", len(exports)), "", created, updated, skipped, "", "", "", ""})

	if colored {
		t.SetStyle(table.StyleColoredBright)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.Render()
}

func pageLabel(e models.ExportSummary) string {
	if e.PageTitle == "" {
		return e.PageID
	}
	return fmt.Sprintf("%s (%s)", e.PageTitle, e.PageID)
}

func exportMode(e models.ExportSummary) string {
	mode := "full"
	if e.DescriptionOnly {
		mode = "description"
	}
	if e.Initialized {
		mode += ", new table"
	}
	if e.DryRun {
		mode += ", dry run"
	}
	return mode
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
