package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrison/resultsync/internal/docstring"
	"github.com/harrison/resultsync/internal/markup"
	"github.com/harrison/resultsync/internal/models"
)

// historySeparator separates archived runs in the Previous Results column.
const historySeparator = markup.TokenNewline + markup.TokenNewline

// Entry is a result row with its parsed description.
type Entry struct {
	Result models.ResultRow
	Fields docstring.Fields
	// Skip is set for results whose status is not recorded.
	Skip bool
}

// Prepare parses the descriptions of all recorded rows. The first malformed
// description aborts with a RowError, so no page is touched for bad input.
func Prepare(rows []models.ResultRow) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		if !r.Status.Recorded() {
			entries = append(entries, Entry{Result: r, Skip: true})
			continue
		}
		fields, err := docstring.Parse(r.Description)
		if err != nil {
			return nil, &RowError{Test: r.Name, Err: err}
		}
		entries = append(entries, Entry{Result: r, Fields: fields})
	}
	return entries, nil
}

// Options control how rows are written.
type Options struct {
	// DescriptionOnly leaves Result and Previous Results untouched.
	DescriptionOnly bool
	// Tester is the display name written to the Tester column.
	Tester string
	// Now returns the date written to the Date column.
	Now func() time.Time
}

// Stats counts what a merge did to the table.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

// Engine merges result rows into a decoded results table.
type Engine struct {
	table  *markup.Table
	codec  *markup.Codec
	reqs   *markup.RequirementSet
	opts   Options
	logger Logger
}

// NewEngine creates an Engine writing into table. The logger may be nil.
func NewEngine(table *markup.Table, codec *markup.Codec, reqs *markup.RequirementSet, opts Options, logger Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{table: table, codec: codec, reqs: reqs, opts: opts, logger: logger}
}

// Apply merges entries in order and then sorts the table by visible test
// name.
func (e *Engine) Apply(entries []Entry) (Stats, error) {
	var stats Stats
	date := e.opts.Now().Format(models.DateLayout)

	for _, entry := range entries {
		if entry.Skip {
			stats.Skipped++
			e.debug(fmt.Sprintf("Skipping %q: status %q is not recorded", entry.Result.Name, entry.Result.RawStatus))
			continue
		}

		created, err := e.applyEntry(entry, date)
		if err != nil {
			return stats, &RowError{Test: entry.Result.Name, Err: err}
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	e.table.SortByVisibleName()
	return stats, nil
}

func (e *Engine) applyEntry(entry Entry, date string) (bool, error) {
	key := entry.Result.Name
	f := entry.Fields

	row := e.table.Find(key)
	created := row == nil

	if created {
		row = e.table.AppendRow()
		row.Set(models.ColumnTestName, markup.WithAnchor(key, markup.EscapeText(f.TestName)))
		row.Set(models.ColumnPreviousResults, markup.EmptyHistory)
		e.debug(fmt.Sprintf("Adding row %q", key))
	} else {
		if !e.opts.DescriptionOnly {
			e.archive(row, key)
		}
		row.Set(models.ColumnTestName, markup.ReplaceVisible(row.Get(models.ColumnTestName), markup.EscapeText(f.TestName)))
		e.debug(fmt.Sprintf("Updating row %q", key))
	}

	row.Set(models.ColumnTestDescription, markup.EscapeText(f.TestDescription))
	row.Set(models.ColumnExpectedResult, markup.EscapeText(f.ExpectedResult))
	row.Set(models.ColumnDate, date)
	row.Set(models.ColumnTester, markup.EscapeText(e.opts.Tester))
	row.Set(models.ColumnTestSetup, markup.EscapeText(f.TestSetup))

	if !e.opts.DescriptionOnly {
		row.Set(models.ColumnResult, markup.StatusToken(entry.Result.Status))
	}
	if f.HasComments {
		row.Set(models.ColumnComments, markup.EscapeText(f.Comments))
	}
	if f.HasRequirements {
		placeholder, err := e.reqs.Add(f.Requirements)
		if err != nil {
			return created, err
		}
		row.Set(models.ColumnRequirements, placeholder)
	}
	return created, nil
}

// archive prepends the previous Result and Test Setup of row to its history.
func (e *Engine) archive(row *markup.Row, key string) {
	label := e.codec.Status(row.Get(models.ColumnResult)).Label()
	if label == "" {
		e.debug(fmt.Sprintf("Row %q has no previous result to archive", key))
		return
	}

	setup := strings.TrimSuffix(row.Get(models.ColumnTestSetup), markup.TokenNewline)
	archived := label + markup.TokenNewline + setup

	history := row.Get(models.ColumnPreviousResults)
	if strings.TrimSpace(history) == "" || history == markup.EmptyHistory {
		row.Set(models.ColumnPreviousResults, archived)
		return
	}
	row.Set(models.ColumnPreviousResults, archived+historySeparator+history)
}

func (e *Engine) debug(message string) {
	if e.logger != nil {
		e.logger.LogDebug(message)
	}
}
