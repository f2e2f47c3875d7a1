// Package display renders terminal output for the resultsync CLI: step
// progress, warnings and go-pretty tables previewing a report file or the
// export history.
//
// All functions accept io.Writer interfaces for testability.
package display
