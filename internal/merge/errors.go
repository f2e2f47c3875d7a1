package merge

import "fmt"

// RowError names the test whose row could not be merged.
type RowError struct {
	Test string
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("test %q: %v", e.Test, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// TableInitError is returned when the page still has no results table after
// a fresh one was written to it.
type TableInitError struct {
	PageID string
	Err    error
}

func (e *TableInitError) Error() string {
	return fmt.Sprintf("page %s: results table missing after initialization: %v", e.PageID, e.Err)
}

func (e *TableInitError) Unwrap() error {
	return e.Err
}
