package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/harrison/resultsync/internal/docstring"
	"github.com/harrison/resultsync/internal/models"
)

// PreviewStats counts the rows of a previewed report.
type PreviewStats struct {
	Passed  int
	Failed  int
	Other   int // statuses that are never written to the page
	Invalid int // recorded rows whose description does not parse
}

// Issue describes a report row whose description does not parse.
type Issue struct {
	Test string
	Err  error
}

// RenderReport prints the rows of a report file as a table. Descriptions of
// recorded rows are parsed so malformed ones are listed before a merge.
func RenderReport(w io.Writer, title string, rows []models.ResultRow, colored bool) (PreviewStats, []Issue) {
	var (
		stats  PreviewStats
		issues []Issue
	)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Name", "Status", "Test Name", "Issue"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Name", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Test Name", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Issue", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, row := range rows {
		status := string(row.Status)
		switch row.Status {
		case models.StatusPassed:
			stats.Passed++
		case models.StatusFailed:
			stats.Failed++
		default:
			stats.Other++
			status = fmt.Sprintf("%s (not recorded)", row.RawStatus)
		}

		var testName, issue string
		if row.Status.Recorded() {
			fields, err := docstring.Parse(row.Description)
			if err != nil {
				stats.Invalid++
				issues = append(issues, Issue{Test: row.Name, Err: err})
				issue = err.Error()
			} else {
				testName = strings.ReplaceAll(fields.TestName, docstring.LineBreak, " ")
			}
		}

		t.AppendRow(table.Row{i + 1, row.Name, status, testName, issue})
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d other", stats.Passed, stats.Failed, stats.Other),
		"",
		fmt.Sprintf("%d invalid", stats.Invalid),
	})

	switch {
	case !colored:
		t.SetStyle(table.StyleLight)
	case stats.Invalid > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	case stats.Failed > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.Render()
	return stats, issues
}
