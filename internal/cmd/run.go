package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/config"
	"github.com/harrison/resultsync/internal/confluence"
	"github.com/harrison/resultsync/internal/display"
	"github.com/harrison/resultsync/internal/filelock"
	"github.com/harrison/resultsync/internal/ledger"
	"github.com/harrison/resultsync/internal/merge"
	"github.com/harrison/resultsync/internal/report"
)

// runOptions are the flags of the run command
type runOptions struct {
	skipTests       bool
	descriptionOnly bool
	dryRun          bool
}

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tests and export the results to Confluence",
		Long: `Run the test suite, build a report file and merge it into the results
table of the configured Confluence page.

Configuration is loaded from resultsync.yaml, resultsync.yml or
resultsync.toml in the current directory unless --config is given.
Credentials come from RESULTSYNC_USERNAME and RESULTSYNC_PASSWORD, or are
prompted for.

Examples:
  resultsync run                        # Run tests and export
  resultsync run --skip-tests           # Export the latest report file
  resultsync run --description-only     # Refresh descriptions, keep results
  resultsync run --dry-run              # Merge without writing the page
  resultsync run --config nightly.toml  # Use a custom config file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts runOptions
			opts.skipTests, _ = cmd.Flags().GetBool("skip-tests")
			opts.descriptionOnly, _ = cmd.Flags().GetBool("description-only")
			opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
			return a.run(cmd, opts)
		},
	}

	cmd.Flags().Bool("skip-tests", false, "Export the latest report file without running the tests")
	cmd.Flags().Bool("description-only", false, "Update descriptions only; leave Result and Previous Results untouched")
	cmd.Flags().Bool("dry-run", false, "Merge in memory and save the page body locally instead of writing it")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts runOptions) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	cfg, configPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, fileLogger, closeLogs, err := openLoggers(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLogs()
	if configPath != "" {
		log.LogDebug(fmt.Sprintf("Loaded config from %s", configPath))
	}
	log.LogDebug(fmt.Sprintf("Run log: %s", fileLogger.RunFile()))

	steps := 4
	if !opts.skipTests {
		steps++
	}
	progress := display.NewProgressIndicator(out, steps)
	progress.Start(fmt.Sprintf("Exporting %s to page %s", cfg.File.Name, cfg.Page.ID))

	if !opts.skipTests {
		progress.Step("Run tests and build report")
		builder := report.NewBuilder(builderOptions(cfg), a.newRunner(cfg.Runner.WorkDir), log, a.now)
		rep, err := builder.Build(ctx)
		if err != nil {
			log.LogError(err.Error())
			return err
		}
		log.LogInfo(fmt.Sprintf("Built report with %d test(s)", rep.Total))
	}

	progress.Step("Read report")
	path, err := report.LatestFile(cfg.ReportFolder(), cfg.File.Name)
	if err != nil {
		return err
	}
	rows, err := report.ReadResults(path)
	if err != nil {
		return err
	}
	log.LogInfo(fmt.Sprintf("Read %d row(s) from %s", len(rows), path))

	progress.Step("Connect to Confluence")
	creds, err := a.credentials().Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}
	store, err := a.newStore(confluence.Config{
		BaseURL:  cfg.Page.URL,
		SpaceKey: cfg.Page.SpaceKey,
		Timeout:  cfg.Client.Timeout,
		RetryMax: cfg.Client.RetryMax,
	}, creds, log)
	if err != nil {
		return err
	}

	progress.Step(fmt.Sprintf("Merge into page %s", cfg.Page.ID))
	merger := merge.NewMerger(store, log, a.now)
	result, err := merger.Merge(ctx, merge.Request{
		Page: merge.Page{
			ID:                   cfg.Page.ID,
			Title:                cfg.Page.Title,
			RequirementsSpaceKey: cfg.RequirementsSpace(),
		},
		Username:        creds.Username,
		SourceFile:      filepath.Base(path),
		Rows:            rows,
		DescriptionOnly: opts.descriptionOnly,
		DryRun:          opts.dryRun,
	})
	if err != nil {
		log.LogError(fmt.Sprintf("Merge stopped at state %s: %v", result.State, err))
		return err
	}

	if opts.dryRun {
		bodyPath := filepath.Join(cfg.LogDir, fmt.Sprintf("dry-run-%s-%s.html", cfg.Page.ID, a.now().Format("20060102-150405")))
		if err := filelock.LockAndWrite(ctx, bodyPath, []byte(result.Body)); err != nil {
			return fmt.Errorf("failed to save merged page body: %w", err)
		}
		log.LogInfo(fmt.Sprintf("Dry run: merged page body saved to %s", bodyPath))
	}

	progress.Step("Record export")
	if err := recordExport(cmd, cfg, result); err != nil {
		// The page is already written; a missing ledger entry is not fatal
		log.LogWarn(fmt.Sprintf("Failed to record export: %v", err))
	}

	if opts.dryRun {
		progress.Complete("Dry run finished; page left unchanged")
	} else {
		progress.Complete(fmt.Sprintf("Exported %d row(s) to %q", result.Summary.Merged(), cfg.Page.Title))
	}
	return nil
}

func recordExport(cmd *cobra.Command, cfg *config.Config, result *merge.Result) error {
	store, err := ledger.NewStore(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(commandContext(cmd), &result.Summary)
}

func builderOptions(cfg *config.Config) report.Options {
	return report.Options{
		WorkDir:       cfg.Runner.WorkDir,
		Folder:        cfg.File.Folder,
		Label:         cfg.File.Name,
		TestCommand:   cfg.Runner.Command,
		ReportCommand: cfg.Runner.ReportCommand,
		Conditions:    cfg.Tests.Conditions,
	}
}
