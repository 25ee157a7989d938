package cli

import (
	"github.com/spf13/cobra"

	"github.com/Craigmuzza/PVPStore-sub000/internal/app"
)

var (
	flipsMinMarginPct float64
	flipsMinMarginGp  int64
	flipsMinBuyLimit  int
	flipsLimit        int
)

var flipsCmd = &cobra.Command{
	Use:   "flips",
	Short: "Show the best current flipping opportunities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Flips(cmd.Context(), app.FlipsOptions{
			MinMarginPct: flipsMinMarginPct,
			MinMarginGp:  flipsMinMarginGp,
			MinBuyLimit:  flipsMinBuyLimit,
			Limit:        flipsLimit,
		})
	},
}

func init() {
	flipsCmd.Flags().Float64Var(&flipsMinMarginPct, "min-margin-pct", 1, "Minimum margin percent")
	flipsCmd.Flags().Int64Var(&flipsMinMarginGp, "min-margin-gp", 1, "Minimum margin in gp")
	flipsCmd.Flags().IntVar(&flipsMinBuyLimit, "min-buy-limit", 0, "Minimum buy limit")
	flipsCmd.Flags().IntVar(&flipsLimit, "limit", 10, "Maximum results")
}
