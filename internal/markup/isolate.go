package markup

import (
	"errors"
	"strings"
)

// TableSentinel marks the position of the results table in the isolated body.
const TableSentinel = "///TABLE///"

// MinColumns is the number of header cells a table needs to be treated as
// the results table.
const MinColumns = 10

// ErrTableMissing indicates the page has no table with at least MinColumns
// header cells and needs a fresh results table.
var ErrTableMissing = errors.New("results table not found")

// Document is a parsed page body.
type Document struct {
	body string
	root *node
}

// Parse parses a page body into a Document.
func Parse(body string) *Document {
	return &Document{body: body, root: parseTree(body)}
}

// Isolation is a page body split around its results table.
type Isolation struct {
	// Span is the markup of the results table.
	Span string
	// Rest is the body with Span replaced by TableSentinel.
	Rest string

	table *node
}

// Reinsert puts table markup back where the results table was isolated.
func (iso *Isolation) Reinsert(table string) string {
	return strings.Replace(iso.Rest, TableSentinel, table, 1)
}

// Isolate finds the last top-level table whose header row has at least
// MinColumns header cells. When no table qualifies it returns
// ErrTableMissing together with an Isolation whose Rest is the whole body.
func (d *Document) Isolate() (*Isolation, error) {
	var table *node
	d.root.walk(func(n *node) bool {
		if n.tag != "table" {
			return true
		}
		if headerWidth(n) >= MinColumns {
			table = n
		}
		// Nested tables are never the results table.
		return false
	})

	if table == nil {
		return &Isolation{Rest: d.body}, ErrTableMissing
	}

	return &Isolation{
		Span:  table.raw(d.body),
		Rest:  d.body[:table.start] + TableSentinel + d.body[table.end:],
		table: table,
	}, nil
}

// tableRows returns the rows of a table in document order, skipping the rows
// of nested tables.
func tableRows(table *node) []*node {
	var rows []*node
	for _, c := range table.children {
		c.walk(func(n *node) bool {
			switch n.tag {
			case "table":
				return false
			case "tr":
				rows = append(rows, n)
				return false
			}
			return true
		})
	}
	return rows
}

// rowCells returns the td and th children of a row.
func rowCells(row *node) []*node {
	var cells []*node
	for _, c := range row.children {
		if c.tag == "td" || c.tag == "th" {
			cells = append(cells, c)
		}
	}
	return cells
}

// headerWidth counts the header cells in the first row of a table.
func headerWidth(table *node) int {
	rows := tableRows(table)
	if len(rows) == 0 {
		return 0
	}
	width := 0
	for _, c := range rowCells(rows[0]) {
		if c.tag == "th" {
			width++
		}
	}
	return width
}
