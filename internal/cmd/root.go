package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/confluence"
	"github.com/harrison/resultsync/internal/merge"
	"github.com/harrison/resultsync/internal/report"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// app holds the collaborators the commands build. Tests replace them.
type app struct {
	newRunner   func(workDir string) report.CommandRunner
	newStore    func(cfg confluence.Config, creds confluence.Credentials, logger confluence.Logger) (merge.ContentStore, error)
	credentials func() confluence.CredentialProvider
	now         func() time.Time
}

func defaultApp() *app {
	return &app{
		newRunner: func(workDir string) report.CommandRunner {
			return report.NewExecRunner(workDir)
		},
		newStore: func(cfg confluence.Config, creds confluence.Credentials, logger confluence.Logger) (merge.ContentStore, error) {
			return confluence.NewClient(cfg, creds, logger)
		},
		credentials: func() confluence.CredentialProvider {
			return confluence.ChainProvider{
				confluence.EnvProvider{},
				confluence.NewPromptProvider(os.Getenv("USER")),
			}
		},
		now: time.Now,
	}
}

// NewRootCommand creates and returns the root cobra command for resultsync
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultApp())
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resultsync",
		Short: "Export test results into a Confluence results table",
		Long: `resultsync runs the test suite, turns the results into a report file and
merges them into the results table of a Confluence page.

Rows are matched by test key. Existing rows keep their previous outcome in
the Previous Results history, new tests are appended and requirement links
are rendered as Confluence macros.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: resultsync.yaml, resultsync.yml or resultsync.toml)")
	cmd.PersistentFlags().Bool("verbose", false, "Log debug output")
	cmd.PersistentFlags().String("log-dir", "", "Directory for log files")

	cmd.AddCommand(newRunCommand(a))
	cmd.AddCommand(newReportCommand(a))
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newValidateCommand())

	return cmd
}

// commandContext returns the command's context, or a background context
// when it runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// colorEnabled reports whether w is a terminal that should get color.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
