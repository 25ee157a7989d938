package cli

import (
	"github.com/spf13/cobra"

	"github.com/Craigmuzza/PVPStore-sub000/internal/app"
)

var (
	alertServer string
	alertUser   string

	alertAddItem         string
	alertAddKind         string
	alertAddTargetPrice  int64
	alertAddDirection    string
	alertAddThresholdPct float64
	alertAddWindowHours  float64
	alertAddMinMarginPct float64
	alertAddMinMarginGp  int64
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage stored user alerts",
}

var alertsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a one-shot alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddAlert(cmd.Context(), app.AlertAddOptions{
			ServerID:     alertServer,
			UserID:       alertUser,
			Item:         alertAddItem,
			Kind:         alertAddKind,
			TargetPrice:  alertAddTargetPrice,
			Direction:    alertAddDirection,
			ThresholdPct: alertAddThresholdPct,
			WindowHours:  alertAddWindowHours,
			MinMarginPct: alertAddMinMarginPct,
			MinMarginGp:  alertAddMinMarginGp,
		})
	},
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's stored alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListUserAlerts(alertServer, alertUser)
	},
}

var alertsDeleteCmd = &cobra.Command{
	Use:   "delete <alert-id>",
	Short: "Delete a stored alert by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().DeleteUserAlert(alertServer, alertUser, args[0])
	},
}

func init() {
	alertsCmd.PersistentFlags().StringVar(&alertServer, "server", "", "Server id owning the alert")
	alertsCmd.PersistentFlags().StringVar(&alertUser, "user", "", "User id owning the alert")

	alertsAddCmd.Flags().StringVar(&alertAddItem, "item", "", "Item id or name")
	alertsAddCmd.Flags().StringVar(&alertAddKind, "kind", "target", "Alert kind: target, change or margin")
	alertsAddCmd.Flags().Int64Var(&alertAddTargetPrice, "price", 0, "Target price in gp (kind=target)")
	alertsAddCmd.Flags().StringVar(&alertAddDirection, "direction", "above", "Target direction: above or below (kind=target)")
	alertsAddCmd.Flags().Float64Var(&alertAddThresholdPct, "change-pct", 0, "Percent move threshold, signed (kind=change)")
	alertsAddCmd.Flags().Float64Var(&alertAddWindowHours, "window-hours", 1, "Lookback window in hours (kind=change)")
	alertsAddCmd.Flags().Float64Var(&alertAddMinMarginPct, "min-margin-pct", 0, "Minimum margin percent (kind=margin)")
	alertsAddCmd.Flags().Int64Var(&alertAddMinMarginGp, "min-margin-gp", 0, "Minimum margin in gp (kind=margin)")

	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsDeleteCmd)
}
