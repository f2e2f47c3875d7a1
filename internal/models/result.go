package models

import "strings"

// Status is the outcome of a single test as reported by the test runner
type Status string

// Test result status constants
const (
	StatusPassed Status = "passed" // Test passed
	StatusFailed Status = "failed" // Test failed
	StatusOther  Status = "other"  // Skipped, broken or unknown; never recorded
)

// ParseStatus maps a raw status string from the intermediate file to a Status.
// Anything other than passed or failed collapses to StatusOther.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "passed":
		return StatusPassed
	case "failed":
		return StatusFailed
	default:
		return StatusOther
	}
}

// Recorded reports whether results with this status are written to the page
func (s Status) Recorded() bool {
	return s == StatusPassed || s == StatusFailed
}

// Label returns the human-readable label used in the Previous Results history
func (s Status) Label() string {
	switch s {
	case StatusPassed:
		return "Success"
	case StatusFailed:
		return "Fail"
	default:
		return ""
	}
}

// ResultRow represents one row of the intermediate tabular file
type ResultRow struct {
	Name        string // Unique test key
	Status      Status // Parsed status
	RawStatus   string // Status as written in the file
	Description string // Free-text block with structured sub-fields
}
