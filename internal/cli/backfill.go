package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Craigmuzza/PVPStore-sub000/internal/app"
)

var (
	backfillItem   string
	backfillFrom   string
	backfillTo     string
	backfillStep   string
	backfillDryRun bool
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import historical timeseries buckets for one item",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := time.Parse(time.RFC3339, backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		to, err := time.Parse(time.RFC3339, backfillTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			Item:   backfillItem,
			From:   from,
			To:     to,
			Step:   backfillStep,
			DryRun: backfillDryRun,
		})
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillItem, "item", "", "Item id or name")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "End timestamp (RFC3339, exclusive)")
	backfillCmd.Flags().StringVar(&backfillStep, "step", "5m", "Timeseries bucket size: 5m, 1h, 6h or 24h")
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "Fetch and convert without writing to the database")

	backfillCmd.MarkFlagRequired("item")
	backfillCmd.MarkFlagRequired("from")
	backfillCmd.MarkFlagRequired("to")
}
