package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/resultsync/internal/display"
	"github.com/harrison/resultsync/internal/ledger"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded exports",
		Long: `Show the exports recorded in the local ledger, newest first.

Dry runs are hidden unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().String("page", "", "Only show exports to this page id")
	cmd.Flags().Int("limit", 20, "Maximum number of exports to show (0 = all)")
	cmd.Flags().Bool("all", false, "Include dry runs")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Don't create an empty ledger just to report that it is empty
	if _, err := os.Stat(cfg.LedgerPath); os.IsNotExist(err) {
		display.RenderHistory(out, nil, false)
		return nil
	}

	store, err := ledger.NewStore(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var filter ledger.Filter
	filter.PageID, _ = cmd.Flags().GetString("page")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	filter.IncludeDryRuns, _ = cmd.Flags().GetBool("all")
	if filter.Limit < 0 {
		return fmt.Errorf("--limit must be >= 0, got %d", filter.Limit)
	}

	exports, err := store.List(commandContext(cmd), filter)
	if err != nil {
		return err
	}
	display.RenderHistory(out, exports, colorEnabled(out))
	return nil
}
