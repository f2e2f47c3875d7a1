package markup

import (
	"fmt"
	"slices"
	"strings"

	"github.com/harrison/resultsync/internal/models"
)

// MissingColumnError is returned when the results table lacks a column of
// the fixed schema.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("results table has no %q column", e.Column)
}

// Cell is one td or th of a row. Value holds the tokenized inner markup.
type Cell struct {
	Value string

	open   string
	header bool
}

// Row is a data row of the results table.
type Row struct {
	cells   []Cell
	columns map[string]int

	open  string
	raw   string // original markup, empty for new rows
	dirty bool
}

// Get returns the tokenized value of a column, or "" when the row is short.
func (r *Row) Get(column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i].Value
}

// Set replaces the tokenized value of a column, padding short rows.
func (r *Row) Set(column, value string) {
	i, ok := r.columns[column]
	if !ok {
		return
	}
	for len(r.cells) <= i {
		r.cells = append(r.cells, Cell{open: "<td>"})
	}
	if r.cells[i].Value == value {
		return
	}
	r.cells[i].Value = value
	r.dirty = true
}

// Key returns the anchor key of the row.
func (r *Row) Key() (string, bool) {
	return AnchorKey(r.Get(models.ColumnTestName))
}

// VisibleName returns the displayed test name of the row.
func (r *Row) VisibleName() string {
	return VisibleText(r.Get(models.ColumnTestName))
}

// Table is the results table decoded into rows of tokenized cells.
type Table struct {
	Rows []*Row

	codec   *Codec
	columns map[string]int
	width   int

	open    string // <table ...> and everything up to the header row
	header  string
	mid     string   // between the header row and the first data row
	seps    []string // between data rows, by position
	suffix  string   // after the last data row
	closing string

	// wrapBody wraps new rows in a tbody the table does not have yet.
	wrapBody bool
}

// Decode converts the isolated results table of a document into a Table.
// Every column of the fixed schema must be present in the header row.
func Decode(iso *Isolation, codec *Codec) (*Table, error) {
	if iso == nil || iso.table == nil {
		return nil, ErrTableMissing
	}
	body := codec.doc.body
	tn := iso.table

	rows := tableRows(tn)
	if len(rows) == 0 {
		return nil, ErrTableMissing
	}
	head := rows[0]

	columns := make(map[string]int)
	headerCells := rowCells(head)
	for i, c := range headerCells {
		name := strings.TrimSpace(textOf(c.inner(body)))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	for _, col := range models.Columns {
		if _, ok := columns[col]; !ok {
			return nil, &MissingColumnError{Column: col}
		}
	}

	t := &Table{
		codec:   codec,
		columns: columns,
		width:   len(headerCells),
		open:    body[tn.start:head.start],
		header:  head.raw(body),
		closing: body[tn.closeStart:tn.end],
	}

	data := rows[1:]
	if len(data) == 0 {
		t.placeRows(body, tn, head)
		return t, nil
	}
	t.mid = body[head.end:data[0].start]
	t.suffix = body[data[len(data)-1].end:tn.closeStart]

	for i, rn := range data {
		if i > 0 {
			t.seps = append(t.seps, body[data[i-1].end:rn.start])
		}
		row := &Row{
			columns: columns,
			open:    rn.open(body),
			raw:     rn.raw(body),
		}
		for _, cn := range rowCells(rn) {
			row.cells = append(row.cells, Cell{
				Value:  codec.tokenize(cn.openEnd, cn.closeStart),
				open:   cn.open(body),
				header: cn.tag == "th",
			})
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// placeRows decides where rows go in a table without data rows. A header row
// inside thead gets its rows in the first tbody after it, or in a new one.
func (t *Table) placeRows(body string, tn, head *node) {
	inHead := false
	for p := head.parent; p != nil && p != tn; p = p.parent {
		if p.tag == "thead" {
			inHead = true
		}
	}
	if !inHead {
		t.suffix = body[head.end:tn.closeStart]
		return
	}

	var tbody *node
	tn.walk(func(n *node) bool {
		if tbody != nil || (n.tag == "table" && n != tn) {
			return false
		}
		if n.tag == "tbody" && n.start >= head.end {
			tbody = n
			return false
		}
		return true
	})
	if tbody == nil {
		t.mid = body[head.end:tn.closeStart]
		t.wrapBody = true
		return
	}
	t.mid = body[head.end:tbody.openEnd]
	t.suffix = body[tbody.openEnd:tn.closeStart]
}

// Find returns the row whose anchor key equals key.
func (t *Table) Find(key string) *Row {
	for _, r := range t.Rows {
		if k, ok := r.Key(); ok && k == key {
			return r
		}
	}
	return nil
}

// AppendRow adds an empty row with one cell per header column.
func (t *Table) AppendRow() *Row {
	row := &Row{columns: t.columns, open: "<tr>", dirty: true}
	for range t.width {
		row.cells = append(row.cells, Cell{open: "<td>"})
	}
	t.Rows = append(t.Rows, row)
	return row
}

// SortByVisibleName orders rows by displayed test name. Rows with equal
// names keep their relative order.
func (t *Table) SortByVisibleName() {
	slices.SortStableFunc(t.Rows, func(a, b *Row) int {
		return strings.Compare(a.VisibleName(), b.VisibleName())
	})
}

// Render serializes the table. Rows that were not modified are written as
// they appeared in the page.
func (t *Table) Render() string {
	var sb strings.Builder
	sb.WriteString(t.open)
	sb.WriteString(t.header)
	sb.WriteString(t.mid)
	wrap := t.wrapBody && len(t.Rows) > 0
	if wrap {
		sb.WriteString("<tbody>")
	}
	for i, r := range t.Rows {
		if i > 0 {
			sb.WriteString(t.separator(i - 1))
		}
		if !r.dirty && r.raw != "" {
			sb.WriteString(r.raw)
			continue
		}
		t.renderRow(&sb, r)
	}
	if wrap {
		sb.WriteString("</tbody>")
	}
	sb.WriteString(t.suffix)
	if t.closing == "" {
		sb.WriteString("</table>")
	} else {
		sb.WriteString(t.closing)
	}
	return sb.String()
}

// separator returns the markup between the rows at positions i and i+1.
// Positions added by new rows repeat the last separator when it is only
// whitespace.
func (t *Table) separator(i int) string {
	if i < len(t.seps) {
		return t.seps[i]
	}
	if n := len(t.seps); n > 0 && strings.TrimSpace(t.seps[n-1]) == "" {
		return t.seps[n-1]
	}
	return ""
}

func (t *Table) renderRow(sb *strings.Builder, r *Row) {
	sb.WriteString(r.open)
	cells := r.cells
	for len(cells) < t.width {
		cells = append(cells, Cell{open: "<td>"})
	}
	for _, c := range cells {
		sb.WriteString(c.open)
		sb.WriteString(t.codec.Detokenize(c.Value))
		if c.header {
			sb.WriteString("</th>")
		} else {
			sb.WriteString("</td>")
		}
	}
	sb.WriteString("</tr>")
}

// EmptyTable returns the markup of a results table with a header row and no
// data rows.
func EmptyTable() string {
	var sb strings.Builder
	sb.WriteString(`<table class="wrapped"><colgroup>`)
	for range models.Columns {
		sb.WriteString("<col />")
	}
	sb.WriteString("</colgroup><tbody><tr>")
	for _, col := range models.Columns {
		sb.WriteString("<th>")
		sb.WriteString(col)
		sb.WriteString("</th>")
	}
	sb.WriteString("</tr></tbody></table>")
	return sb.String()
}
