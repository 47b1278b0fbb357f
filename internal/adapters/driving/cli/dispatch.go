package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// defaultWindow is how far back a run looks for candidates when no
// --since override is given. The scheduler runs far more often than
// this; the overlap is what makes missed runs harmless.
const defaultWindow = 24 * time.Hour

var sinceFlag time.Duration

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Fetch depletions and post them to the ERP",
	Long: `Fetches ingredient depletion actions effective within the lookback
window and posts each one to the ERP at most once. Transactions already
recorded as done are skipped; previously failed ones are retried.`,
	RunE: runDispatch,
}

func init() {
	dispatchCmd.Flags().DurationVar(&sinceFlag, "since", defaultWindow, "lookback window for candidate actions")
	rootCmd.AddCommand(dispatchCmd)
}

func runDispatch(cmd *cobra.Command, _ []string) error {
	if err := initPipeline(); err != nil {
		return err
	}

	ctx := context.Background()
	since := time.Now().UTC().Add(-sinceFlag)

	cmd.Printf("Dispatching depletions since %s...\n", since.Format(time.RFC3339))

	report, err := dispatchRunner.Dispatch(ctx, since)
	if report != nil {
		for _, result := range report.Results {
			switch {
			case result.Success:
				cmd.Printf("  done    %s\n", result.UniqueTransactionID)
			case result.Skipped:
				cmd.Printf("  skipped %s (%s)\n", result.UniqueTransactionID, result.Message)
			default:
				cmd.Printf("  error   %s (%s)\n", result.UniqueTransactionID, result.Message)
			}
		}
		cmd.Printf("Run %s: %d dispatched, %d skipped, %d failed.\n",
			report.RunID, report.Dispatched, report.Skipped, report.Failed)
	}
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	return nil
}
