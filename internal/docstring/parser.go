// Package docstring parses the structured test description written in each
// test's docstring and carried in the Description column of the report.
//
// A description is a sequence of marker/value pairs:
//
//	[REQUIREMENTS];REQ-1;[TEST NAME];Login works;[TEST DESCRIPTION];...
//
// Markers must appear in a fixed order. A value runs from the end of its
// marker to the next marker present in the description (or to the end),
// with one leading and one trailing line terminator removed.
package docstring

import (
	"strings"

	"github.com/harrison/resultsync/internal/models"
)

// LineBreak is the line terminator written into descriptions by the report
// builder. It is the same placeholder the page codec uses for <br />.
const LineBreak = "///n///"

// Fields holds the values parsed from one description.
type Fields struct {
	Requirements    string
	HasRequirements bool
	TestName        string
	TestDescription string
	ExpectedResult  string
	TestSetup       string
	Comments        string
	HasComments     bool
}

// descriptor is one entry of the ordered description schema.
type descriptor struct {
	marker string
	field  string
	// markerRequired fails parsing with MissingHeaderError when the marker
	// is absent.
	markerRequired bool
	// valueRequired fails parsing with EmptyFieldError when the marker is
	// present with an empty value.
	valueRequired bool
	set           func(f *Fields, value string)
}

var schema = []descriptor{
	{
		marker: "[REQUIREMENTS]", field: models.ColumnRequirements, valueRequired: true,
		set: func(f *Fields, v string) { f.Requirements, f.HasRequirements = v, true },
	},
	{
		marker: "[TEST NAME]", field: models.ColumnTestName, markerRequired: true, valueRequired: true,
		set: func(f *Fields, v string) { f.TestName = v },
	},
	{
		marker: "[TEST DESCRIPTION]", field: models.ColumnTestDescription, markerRequired: true, valueRequired: true,
		set: func(f *Fields, v string) { f.TestDescription = v },
	},
	{
		marker: "[EXPECTED RESULT]", field: models.ColumnExpectedResult, markerRequired: true, valueRequired: true,
		set: func(f *Fields, v string) { f.ExpectedResult = v },
	},
	{
		marker: "[TEST SETUP]", field: models.ColumnTestSetup, markerRequired: true, valueRequired: true,
		set: func(f *Fields, v string) { f.TestSetup = v },
	},
	{
		marker: "[COMMENTS]", field: models.ColumnComments,
		set: func(f *Fields, v string) { f.Comments, f.HasComments = v, true },
	},
}

// Parse extracts the fields of a description. Checks run in order: missing
// mandatory markers, marker order, then empty values.
func Parse(desc string) (Fields, error) {
	positions := make([]int, len(schema))
	for i, d := range schema {
		positions[i] = strings.Index(desc, d.marker)
	}

	for i, d := range schema {
		if d.markerRequired && positions[i] < 0 {
			return Fields{}, &MissingHeaderError{Field: d.field, Marker: d.marker}
		}
	}

	prev := -1
	for i, pos := range positions {
		if pos < 0 {
			continue
		}
		if prev >= 0 && pos <= positions[prev] {
			return Fields{}, &HeaderOrderError{Field: schema[i].field, After: schema[prev].field}
		}
		prev = i
	}

	var f Fields
	for i, d := range schema {
		pos := positions[i]
		if pos < 0 {
			continue
		}

		end := len(desc)
		for _, next := range positions[i+1:] {
			if next >= 0 {
				end = next
				break
			}
		}

		value := trimValue(desc[pos+len(d.marker) : end])
		if value == "" && d.valueRequired {
			return Fields{}, &EmptyFieldError{Field: d.field}
		}
		d.set(&f, value)
	}
	return f, nil
}

// trimValue strips surrounding whitespace and one leading and one trailing
// line terminator.
func trimValue(v string) string {
	v = strings.TrimSpace(v)
	for _, term := range []string{LineBreak, ";"} {
		if strings.HasPrefix(v, term) {
			v = strings.TrimPrefix(v, term)
			break
		}
	}
	for _, term := range []string{LineBreak, ";"} {
		if strings.HasSuffix(v, term) {
			v = strings.TrimSuffix(v, term)
			break
		}
	}
	return strings.TrimSpace(v)
}
