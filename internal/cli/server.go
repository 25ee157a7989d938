package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Craigmuzza/PVPStore-sub000/internal/app"
)

var (
	serverID string

	serverEnabled        bool
	serverChannel        string
	serverPump           bool
	serverDump           bool
	serverCrash          bool
	serverSpike          bool
	serverUnusual        bool
	serverTimeframeHours float64
	serverCooldown       time.Duration
	serverMaxPerHour     int

	watchlistItems []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage per-server scan configuration",
}

var serverSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a server's scan configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ServerSetOptions{ServerID: serverID}

		flags := cmd.Flags()
		if flags.Changed("enabled") {
			opts.Enabled = &serverEnabled
		}
		if flags.Changed("channel") {
			opts.ChannelID = &serverChannel
		}
		if flags.Changed("pump") {
			opts.PumpEnabled = &serverPump
		}
		if flags.Changed("dump") {
			opts.DumpEnabled = &serverDump
		}
		if flags.Changed("crash") {
			opts.CrashEnabled = &serverCrash
		}
		if flags.Changed("spike") {
			opts.SpikeEnabled = &serverSpike
		}
		if flags.Changed("unusual") {
			opts.UnusualEnabled = &serverUnusual
		}
		if flags.Changed("timeframe-hours") {
			opts.TimeframeHours = &serverTimeframeHours
		}
		if flags.Changed("cooldown") {
			opts.Cooldown = &serverCooldown
		}
		if flags.Changed("max-per-hour") {
			opts.MaxAlertsPerHour = &serverMaxPerHour
		}

		return getApp().SetServerConfig(opts)
	},
}

var serverWatchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Replace a server's watchlist (empty clears it)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetWatchlist(cmd.Context(), serverID, watchlistItems)
	},
}

func init() {
	serverCmd.PersistentFlags().StringVar(&serverID, "server", "", "Server id")

	serverSetCmd.Flags().BoolVar(&serverEnabled, "enabled", false, "Enable or disable server scans")
	serverSetCmd.Flags().StringVar(&serverChannel, "channel", "", "Channel id receiving server alerts")
	serverSetCmd.Flags().BoolVar(&serverPump, "pump", true, "Enable pump detection")
	serverSetCmd.Flags().BoolVar(&serverDump, "dump", true, "Enable dump detection")
	serverSetCmd.Flags().BoolVar(&serverCrash, "crash", true, "Enable crash detection")
	serverSetCmd.Flags().BoolVar(&serverSpike, "spike", true, "Enable spike detection")
	serverSetCmd.Flags().BoolVar(&serverUnusual, "unusual", true, "Enable unusual activity detection")
	serverSetCmd.Flags().Float64Var(&serverTimeframeHours, "timeframe-hours", 1, "Crash/spike lookback window in hours")
	serverSetCmd.Flags().DurationVar(&serverCooldown, "cooldown", 30*time.Minute, "Per item and signal cooldown")
	serverSetCmd.Flags().IntVar(&serverMaxPerHour, "max-per-hour", 10, "Per channel alert ceiling per hour")

	serverWatchlistCmd.Flags().StringSliceVar(&watchlistItems, "items", nil, "Item ids or names, comma separated")

	serverCmd.AddCommand(serverSetCmd)
	serverCmd.AddCommand(serverWatchlistCmd)
}
