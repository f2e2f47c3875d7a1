package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/display"
	"github.com/harrison/resultsync/internal/report"
)

func newReportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the tests and preview the report without exporting it",
		Long: `Run the test suite, build a report file and print it as a table.
Nothing is sent to Confluence.

With --skip-tests the latest existing report file is shown instead.
Rows whose description would stop an export are listed at the end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			skipTests, _ := cmd.Flags().GetBool("skip-tests")
			return a.report(cmd, skipTests)
		},
	}

	cmd.Flags().Bool("skip-tests", false, "Preview the latest report file without running the tests")

	return cmd
}

func (a *app) report(cmd *cobra.Command, skipTests bool) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLocal(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var path string
	if skipTests {
		path, err = report.LatestFile(cfg.ReportFolder(), cfg.File.Name)
		if err != nil {
			return err
		}
	} else {
		log, _, closeLogs, err := openLoggers(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeLogs()

		builder := report.NewBuilder(builderOptions(cfg), a.newRunner(cfg.Runner.WorkDir), log, a.now)
		rep, err := builder.Build(commandContext(cmd))
		if err != nil {
			log.LogError(err.Error())
			return err
		}
		path = rep.Path
	}

	rows, err := report.ReadResults(path)
	if err != nil {
		return err
	}

	_, issues := display.RenderReport(out, filepath.Base(path), rows, colorEnabled(out))
	if len(issues) > 0 {
		items := make([]string, 0, len(issues))
		for _, issue := range issues {
			items = append(items, fmt.Sprintf("%s: %v", issue.Test, issue.Err))
		}
		display.Warning{
			Title:      "Malformed descriptions",
			Message:    "Exporting this report would stop at the first of these rows.",
			Items:      items,
			ItemLabel:  "Tests",
			Suggestion: "Fix the test docstrings and build the report again",
		}.Display(cmd.ErrOrStderr())
	}
	return nil
}
