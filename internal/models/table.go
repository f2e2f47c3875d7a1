package models

// Column names of the results table, in display order
const (
	ColumnRequirements    = "Requirements"
	ColumnTestName        = "Test Name"
	ColumnTestDescription = "Test Description"
	ColumnExpectedResult  = "Expected Result"
	ColumnResult          = "Result"
	ColumnTester          = "Tester"
	ColumnDate            = "Date"
	ColumnTestSetup       = "Test Setup"
	ColumnPreviousResults = "Previous Results"
	ColumnComments        = "Comments"
)

// Columns is the fixed, ordered schema of the results table
var Columns = []string{
	ColumnRequirements,
	ColumnTestName,
	ColumnTestDescription,
	ColumnExpectedResult,
	ColumnResult,
	ColumnTester,
	ColumnDate,
	ColumnTestSetup,
	ColumnPreviousResults,
	ColumnComments,
}

// DateLayout is the format of the Date column (DD.MM.YYYY)
const DateLayout = "02.01.2006"
