package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [unique-transaction-id]",
	Short: "Show dispatch ledger entries",
	Long: `Shows the most recent ledger entries, or the recorded status of a
single transaction when its identity is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "number of entries to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := initStore(); err != nil {
		return err
	}

	ctx := context.Background()

	if len(args) == 1 {
		status, err := ledgerStore.StatusOf(ctx, args[0])
		if err != nil {
			return fmt.Errorf("reading status: %w", err)
		}
		if status == domain.StatusAbsent {
			cmd.Printf("%s: not dispatched\n", args[0])
			return nil
		}
		cmd.Printf("%s: %s\n", args[0], status)
		return nil
	}

	records, err := ledgerStore.Recent(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("listing ledger: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("Ledger is empty.")
		return nil
	}

	for _, rec := range records {
		cmd.Printf("%-7s %s  %s\n", rec.Status, rec.CreatedAt.Format("2006-01-02 15:04"), rec.UniqueTransactionID)
	}
	return nil
}
