// Package report runs the test suite and turns the generated results into
// the report file that is later merged into the results page.
//
// The builder works in a single work directory:
//
//	<work_dir>/allure_results   raw results written by the test runner
//	<work_dir>/allure-report    report generated from the raw results
//	<work_dir>/<folder>         report files, "<YYYY-MM-DD HH-MM-SS> <label>.csv"
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/resultsync/internal/filelock"
)

// Default commands. {results} and {report} expand to the raw results and
// generated report directories.
const (
	DefaultTestCommand   = "pytest --alluredir={results} -s"
	DefaultReportCommand = "allure generate {results} --clean -o {report}"
)

// TimestampLayout is the timestamp prefix of report file names.
const TimestampLayout = "2006-01-02 15-04-05"

const (
	resultsDirName = "allure_results"
	reportDirName  = "allure-report"
)

// Logger receives builder progress.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogCommandOutput(command, output string)
}

// Options configure a Builder.
type Options struct {
	WorkDir       string
	Folder        string
	Label         string
	TestCommand   string
	ReportCommand string
	// Conditions are appended to the test command as extra arguments.
	Conditions []string
}

// Report is a report file produced by a build.
type Report struct {
	Path  string
	Total int
	Rows  int
}

// Builder runs the tests and produces report files.
type Builder struct {
	opts   Options
	runner CommandRunner
	logger Logger
	now    func() time.Time
}

// NewBuilder creates a Builder. The logger may be nil and now defaults to
// time.Now.
func NewBuilder(opts Options, runner CommandRunner, logger Logger, now func() time.Time) *Builder {
	if opts.TestCommand == "" {
		opts.TestCommand = DefaultTestCommand
	}
	if opts.ReportCommand == "" {
		opts.ReportCommand = DefaultReportCommand
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{opts: opts, runner: runner, logger: logger, now: now}
}

// ResultsDir is where the test runner writes raw results.
func (b *Builder) ResultsDir() string {
	return filepath.Join(b.opts.WorkDir, resultsDirName)
}

// ReportDir is where the report generator writes its output.
func (b *Builder) ReportDir() string {
	return filepath.Join(b.opts.WorkDir, reportDirName)
}

// OutputDir is the folder holding report files.
func (b *Builder) OutputDir() string {
	if filepath.IsAbs(b.opts.Folder) {
		return b.opts.Folder
	}
	return filepath.Join(b.opts.WorkDir, b.opts.Folder)
}

// Build runs the tests, generates the report and stores it as a new report
// file. The row count is checked after the file is written so a mismatching
// file can be inspected.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	if err := clearDir(b.ResultsDir()); err != nil {
		return nil, err
	}

	placeholders := map[string]string{
		"results": b.ResultsDir(),
		"report":  b.ReportDir(),
	}

	testArgs, err := SplitCommand(b.opts.TestCommand, placeholders)
	if err != nil {
		return nil, err
	}
	testArgs = append(testArgs, b.opts.Conditions...)
	if err := b.run(ctx, testArgs, true); err != nil {
		return nil, fmt.Errorf("test run failed: %w", err)
	}

	reportArgs, err := SplitCommand(b.opts.ReportCommand, placeholders)
	if err != nil {
		return nil, err
	}
	if err := b.run(ctx, reportArgs, false); err != nil {
		return nil, fmt.Errorf("report generation failed: %w", err)
	}

	total, err := ReadTotal(filepath.Join(b.ReportDir(), "history", "history-trend.json"))
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoTests
	}

	raw, err := os.ReadFile(filepath.Join(b.ReportDir(), "data", "suites.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read generated report: %w", err)
	}
	data := NormalizeReport(raw)

	path := filepath.Join(b.OutputDir(), FileName(b.now().Format(TimestampLayout), b.opts.Label))
	if err := filelock.LockAndWrite(ctx, path, data); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	b.info(fmt.Sprintf("Report written to %s", path))

	rows := CountRows(data)
	if rows != total {
		return nil, &RowCountMismatchError{Path: path, Rows: rows, Total: total}
	}

	if err := SortFile(ctx, path); err != nil {
		return nil, err
	}
	return &Report{Path: path, Total: total, Rows: rows}, nil
}

// run executes a command. When tolerateExit is set a non-zero exit code is
// only reported as a warning: failing tests still produce results.
func (b *Builder) run(ctx context.Context, args []string, tolerateExit bool) error {
	line := JoinCommand(args)
	b.info(fmt.Sprintf("Running %s", line))

	output, err := b.runner.Run(ctx, args)
	if b.logger != nil {
		b.logger.LogCommandOutput(line, output)
	}

	var exitErr *ExitError
	if tolerateExit && errors.As(err, &exitErr) {
		if b.logger != nil {
			b.logger.LogWarn(fmt.Sprintf("%s (some tests failed)", exitErr))
		}
		return nil
	}
	return err
}

// clearDir removes the files of dir left by an earlier run and makes sure dir
// exists.
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove stale result: %w", err)
		}
	}
	return os.MkdirAll(dir, 0755)
}

func (b *Builder) info(message string) {
	if b.logger != nil {
		b.logger.LogInfo(message)
	}
}
