// Package merge writes test results into the results table of a Confluence
// page.
//
// A merge reads the page once, rewrites the results table in memory and
// writes the page once. The only other write happens when the page has no
// results table yet: a fresh table is written and the page is read again.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/resultsync/internal/markup"
	"github.com/harrison/resultsync/internal/models"
)

// Logger receives merge progress.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogSummary(summary models.ExportSummary)
}

// ContentStore reads and writes page bodies.
type ContentStore interface {
	FetchPageBody(ctx context.Context, pageID string) (string, error)
	UpdatePage(ctx context.Context, pageID, title, body string) error
	ResolveDisplayName(ctx context.Context, username string) (string, error)
}

// State is a step of a merge.
type State int

const (
	StateInit State = iota
	StateTableLocated
	StateTableMissingInit
	StateMarkupTokenized
	StateRowsMerged
	StateMarkupDetokenized
	StateWritten
)

var stateNames = map[State]string{
	StateInit:              "Init",
	StateTableLocated:      "TableLocated",
	StateTableMissingInit:  "TableMissingInit",
	StateMarkupTokenized:   "MarkupTokenized",
	StateRowsMerged:        "RowsMerged",
	StateMarkupDetokenized: "MarkupDetokenized",
	StateWritten:           "Written",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Page identifies the page holding the results table.
type Page struct {
	ID    string
	Title string
	// RequirementsSpaceKey is the space requirement links point to.
	RequirementsSpaceKey string
}

// Request describes one merge.
type Request struct {
	Page       Page
	Username   string
	SourceFile string
	Rows       []models.ResultRow

	DescriptionOnly bool
	// DryRun builds the merged body without writing anything to the page.
	DryRun bool
}

// Result is the outcome of a merge.
type Result struct {
	Body    string
	State   State
	Summary models.ExportSummary
}

// Merger runs merges against a content store.
type Merger struct {
	store  ContentStore
	logger Logger
	now    func() time.Time
}

// NewMerger creates a Merger. The logger may be nil and now defaults to
// time.Now.
func NewMerger(store ContentStore, logger Logger, now func() time.Time) *Merger {
	if store == nil {
		panic("content store cannot be nil")
	}
	if now == nil {
		now = time.Now
	}
	return &Merger{store: store, logger: logger, now: now}
}

// located is a parsed page with its results table isolated.
type located struct {
	doc    *markup.Document
	blocks []markup.Block
	iso    *markup.Isolation
}

// Merge merges req.Rows into the results table of req.Page. Nothing is
// written when an error is returned, except the fresh table written to a
// page that had none.
func (m *Merger) Merge(ctx context.Context, req Request) (*Result, error) {
	start := m.now()
	res := &Result{State: StateInit}

	entries, err := Prepare(req.Rows)
	if err != nil {
		return res, err
	}

	body, err := m.store.FetchPageBody(ctx, req.Page.ID)
	if err != nil {
		return res, fmt.Errorf("fetch page %s: %w", req.Page.ID, err)
	}

	loc, err := locate(body)
	initialized := false
	switch {
	case errors.Is(err, markup.ErrTableMissing):
		m.transition(res, StateTableMissingInit)
		loc, err = m.initTable(ctx, req, body)
		if err != nil {
			return res, err
		}
		initialized = true
	case err != nil:
		return res, err
	}
	m.transition(res, StateTableLocated)

	reqs := markup.NewRequirementSet()
	codec := markup.NewCodec(loc.doc, loc.blocks, reqs, req.Page.RequirementsSpaceKey)
	table, err := markup.Decode(loc.iso, codec)
	if err != nil {
		return res, fmt.Errorf("decode results table: %w", err)
	}
	m.transition(res, StateMarkupTokenized)

	tester, err := m.store.ResolveDisplayName(ctx, req.Username)
	if err != nil {
		return res, fmt.Errorf("resolve tester name: %w", err)
	}

	engine := NewEngine(table, codec, reqs, Options{
		DescriptionOnly: req.DescriptionOnly,
		Tester:          tester,
		Now:             m.now,
	}, m.logger)
	stats, err := engine.Apply(entries)
	if err != nil {
		return res, err
	}
	m.transition(res, StateRowsMerged)
	if ids := reqs.IDs(); len(ids) > 0 {
		m.info(fmt.Sprintf("Linked requirements: %s", strings.Join(ids, ", ")))
	}

	res.Body = loc.iso.Reinsert(table.Render())
	m.transition(res, StateMarkupDetokenized)

	res.Summary = models.ExportSummary{
		PageID:          req.Page.ID,
		PageTitle:       req.Page.Title,
		SourceFile:      req.SourceFile,
		Created:         stats.Created,
		Updated:         stats.Updated,
		Skipped:         stats.Skipped,
		Requirements:    reqs.Len(),
		DescriptionOnly: req.DescriptionOnly,
		DryRun:          req.DryRun,
		Initialized:     initialized,
	}

	if !req.DryRun {
		if err := m.store.UpdatePage(ctx, req.Page.ID, req.Page.Title, res.Body); err != nil {
			return res, fmt.Errorf("update page %s: %w", req.Page.ID, err)
		}
		m.transition(res, StateWritten)
	}

	res.Summary.ExportedAt = m.now()
	res.Summary.Duration = res.Summary.ExportedAt.Sub(start)
	if m.logger != nil {
		m.logger.LogSummary(res.Summary)
	}
	return res, nil
}

// initTable gives a page without a results table a fresh one. In a dry run
// the table is only added in memory.
func (m *Merger) initTable(ctx context.Context, req Request, body string) (*located, error) {
	withTable := body + markup.EmptyTable()

	if req.DryRun {
		m.info("Page has no results table; adding one in memory (dry run)")
	} else {
		m.info(fmt.Sprintf("Page %s has no results table; creating one", req.Page.ID))
		if err := m.store.UpdatePage(ctx, req.Page.ID, req.Page.Title, withTable); err != nil {
			return nil, fmt.Errorf("initialize results table: %w", err)
		}
		var err error
		withTable, err = m.store.FetchPageBody(ctx, req.Page.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch page %s: %w", req.Page.ID, err)
		}
	}

	loc, err := locate(withTable)
	if err != nil {
		return nil, &TableInitError{PageID: req.Page.ID, Err: err}
	}
	return loc, nil
}

// locate parses body and isolates its results table.
func locate(body string) (*located, error) {
	if err := markup.CheckCollisions(body); err != nil {
		return nil, err
	}
	doc := markup.Parse(body)
	iso, err := doc.Isolate()
	if err != nil {
		return nil, err
	}
	return &located{doc: doc, blocks: doc.ExtractBlocks(), iso: iso}, nil
}

func (m *Merger) transition(res *Result, s State) {
	res.State = s
	if m.logger != nil {
		m.logger.LogDebug(fmt.Sprintf("Merge state: %s", s))
	}
}

func (m *Merger) info(message string) {
	if m.logger != nil {
		m.logger.LogInfo(message)
	}
}
