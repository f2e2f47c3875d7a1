package models

import "time"

// ExportSummary describes one merge of a report into the results page
type ExportSummary struct {
	RunID      string
	PageID     string
	PageTitle  string
	SourceFile string

	Created      int // rows added to the table
	Updated      int // existing rows rewritten
	Skipped      int // rows with a status that is not recorded
	Requirements int // distinct requirement links written

	DescriptionOnly bool
	DryRun          bool
	Initialized     bool // a fresh results table was created first

	Duration   time.Duration
	ExportedAt time.Time
}

// Merged returns the number of rows written to the table
func (s ExportSummary) Merged() int {
	return s.Created + s.Updated
}
