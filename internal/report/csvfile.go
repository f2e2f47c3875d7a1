package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/harrison/resultsync/internal/filelock"
	"github.com/harrison/resultsync/internal/models"
)

// LineBreak replaces the end of each docstring line in the Description
// column.
const LineBreak = "///n///"

// Required columns of a report.
const (
	ColumnName        = "Name"
	ColumnStatus      = "Status"
	ColumnDescription = "Description"
)

// NormalizeReport folds every docstring line ending with a semicolon into a
// LineBreak and drops four-space indentation, so each test occupies one
// physical line.
func NormalizeReport(data []byte) []byte {
	out := bytes.ReplaceAll(data, []byte(";\r\n"), []byte(LineBreak))
	out = bytes.ReplaceAll(out, []byte(";\n"), []byte(LineBreak))
	return bytes.ReplaceAll(out, []byte("    "), nil)
}

// CountRows returns the number of physical lines after the header line.
func CountRows(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	lines := bytes.Count(data, []byte("\n"))
	if data[len(data)-1] != '\n' {
		lines++
	}
	return lines - 1
}

// FileName returns the report file name for a timestamp and label.
func FileName(timestamp, label string) string {
	return timestamp + " " + label + ".csv"
}

// LatestFile returns the lexicographically last report in folder whose name
// ends with " <label>.csv".
func LatestFile(folder, label string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to list reports in %s: %w", folder, err)
	}

	suffix := " " + label + ".csv"
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", &IntermediateFileMissingError{Folder: folder, Label: label}
	}
	slices.Sort(names)
	return filepath.Join(folder, names[len(names)-1]), nil
}

// Table is a report loaded into memory.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of a column, or -1.
func (t *Table) Column(name string) int {
	return slices.Index(t.Header, name)
}

// ReadTable loads a report.
func ReadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	// Allure writes a byte order mark before the header.
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report %s is empty", path)
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// SortFile sorts the rows of a report by Name, keeping the order of rows
// with equal names, and rewrites it atomically.
func SortFile(ctx context.Context, path string) error {
	t, err := ReadTable(path)
	if err != nil {
		return err
	}
	col := t.Column(ColumnName)
	if col < 0 {
		return &MissingHeaderError{Path: path, Column: ColumnName}
	}

	slices.SortStableFunc(t.Rows, func(a, b []string) int {
		return strings.Compare(field(a, col), field(b, col))
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write report rows: %w", err)
	}
	return filelock.LockAndWrite(ctx, path, buf.Bytes())
}

// ReadResults loads the Name, Status and Description of every report row
// in file order.
func ReadResults(path string) ([]models.ResultRow, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int)
	for _, name := range []string{ColumnName, ColumnStatus, ColumnDescription} {
		i := t.Column(name)
		if i < 0 {
			return nil, &MissingHeaderError{Path: path, Column: name}
		}
		cols[name] = i
	}

	rows := make([]models.ResultRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		raw := field(rec, cols[ColumnStatus])
		rows = append(rows, models.ResultRow{
			Name:        field(rec, cols[ColumnName]),
			Status:      models.ParseStatus(raw),
			RawStatus:   raw,
			Description: field(rec, cols[ColumnDescription]),
		})
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
