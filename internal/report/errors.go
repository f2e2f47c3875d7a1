package report

import (
	"errors"
	"fmt"
)

// ErrNoTests indicates the run summary reports zero executed tests.
var ErrNoTests = errors.New("test run reported no tests")

// RowCountMismatchError is returned when the generated report has a
// different number of rows than the run summary reports tests. This usually
// means a docstring line lacks its terminating semicolon.
type RowCountMismatchError struct {
	Path  string
	Rows  int
	Total int
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("report %s has %d rows but the run summary reports %d tests; check test docstrings for missing semicolons", e.Path, e.Rows, e.Total)
}

// IntermediateFileMissingError is returned when no report matches the
// configured label.
type IntermediateFileMissingError struct {
	Folder string
	Label  string
}

func (e *IntermediateFileMissingError) Error() string {
	return fmt.Sprintf("no report matching %q found in %s", "* "+e.Label+".csv", e.Folder)
}

// MissingHeaderError is returned when a report lacks a required column.
type MissingHeaderError struct {
	Path   string
	Column string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("report %s has no %q column", e.Path, e.Column)
}
