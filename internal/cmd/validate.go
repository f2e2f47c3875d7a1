package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/docstring"
	"github.com/harrison/resultsync/internal/report"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and the latest report file",
		Long: `Check the configuration and the latest report file, checking for:
  - Missing or malformed configuration values
  - A report file with the Name, Status and Description columns
  - Descriptions that would stop an export

Nothing is sent to Confluence.

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateWithOutput(cmd, cmd.OutOrStdout())
		},
		SilenceUsage: true,
	}

	return cmd
}

// validateWithOutput validates with a custom output writer (for testing)
func validateWithOutput(cmd *cobra.Command, output io.Writer) error {
	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(output, "✗ Failed to load configuration\n")
		fmt.Fprintf(output, "  Error: %v\n", err)
		return err
	}
	if configPath == "" {
		fmt.Fprintf(output, "✓ No config file found, using defaults\n")
	} else {
		fmt.Fprintf(output, "✓ Loaded configuration from %s\n", configPath)
	}

	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = append(problems, fmt.Sprintf("configuration: %v", err))
	} else {
		fmt.Fprintf(output, "✓ Configuration is valid\n")
	}

	if cfg.File.Name != "" {
		problems = append(problems, validateLatestReport(output, cfg.ReportFolder(), cfg.File.Name)...)
	}

	if len(problems) == 0 {
		fmt.Fprintf(output, "\n✓ Ready to export!\n")
		return nil
	}

	fmt.Fprintf(output, "\n✗ Validation failed\n")
	for _, p := range problems {
		fmt.Fprintf(output, "  ✗ %s\n", p)
	}
	fmt.Fprintf(output, "\nFound %d validation error(s)!\n", len(problems))
	return fmt.Errorf("validation failed with %d error(s)", len(problems))
}

// validateLatestReport checks every recorded row of the latest report. A
// missing report is not an error: run builds one.
func validateLatestReport(output io.Writer, folder, label string) []string {
	path, err := report.LatestFile(folder, label)
	var missing *report.IntermediateFileMissingError
	if errors.As(err, &missing) {
		fmt.Fprintf(output, "✓ No report file yet in %s\n", folder)
		return nil
	}
	if err != nil {
		return []string{err.Error()}
	}

	rows, err := report.ReadResults(path)
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string
	recorded := 0
	for _, row := range rows {
		if !row.Status.Recorded() {
			continue
		}
		recorded++
		if _, err := docstring.Parse(row.Description); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", row.Name, err))
		}
	}

	fmt.Fprintf(output, "✓ Read %d row(s) from %s, %d to export\n", len(rows), path, recorded)
	return problems
}
