package cli

import (
	"github.com/spf13/cobra"

	"github.com/Craigmuzza/PVPStore-sub000/internal/app"
)

var itemsLimit int

var itemsCmd = &cobra.Command{
	Use:   "items <query>",
	Short: "Search items and show current prices and margins",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Items(cmd.Context(), app.ItemsOptions{
			Query: args[0],
			Limit: itemsLimit,
		})
	},
}

func init() {
	itemsCmd.Flags().IntVar(&itemsLimit, "limit", 10, "Maximum matches to show")
}
