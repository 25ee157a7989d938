package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Craigmuzza/PVPStore-sub000/internal/alerting"
)

// AlertAddOptions describe one stored alert to create. Kind selects which of
// the spec fields apply.
type AlertAddOptions struct {
	ServerID string
	UserID   string
	Item     string
	Kind     string

	TargetPrice  int64
	Direction    string
	ThresholdPct float64
	WindowHours  float64
	MinMarginPct float64
	MinMarginGp  int64
}

// ServerSetOptions carry partial server configuration updates. Nil fields are
// left untouched.
type ServerSetOptions struct {
	ServerID string

	Enabled   *bool
	ChannelID *string

	PumpEnabled    *bool
	DumpEnabled    *bool
	CrashEnabled   *bool
	SpikeEnabled   *bool
	UnusualEnabled *bool

	TimeframeHours   *float64
	Cooldown         *time.Duration
	MaxAlertsPerHour *int
}

// AddAlert stores a one-shot alert for a user.
func (a *App) AddAlert(ctx context.Context, opts AlertAddOptions) error {
	if opts.ServerID == "" || opts.UserID == "" {
		return errors.New("--server and --user are required")
	}

	itemID, err := a.resolveItemID(ctx, opts.Item)
	if err != nil {
		return err
	}

	engine, err := a.newEngine(nil, nil)
	if err != nil {
		return err
	}

	var def alerting.Definition
	switch opts.Kind {
	case "target":
		def, err = engine.AddPriceTargetAlert(opts.ServerID, opts.UserID, alerting.PriceTargetSpec{
			ItemID:      itemID,
			TargetPrice: opts.TargetPrice,
			Direction:   alerting.Direction(opts.Direction),
		})
	case "change":
		def, err = engine.AddPriceChangeAlert(opts.ServerID, opts.UserID, alerting.PriceChangeSpec{
			ItemID:       itemID,
			ThresholdPct: opts.ThresholdPct,
			WindowHours:  opts.WindowHours,
		})
	case "margin":
		def, err = engine.AddMarginAlert(opts.ServerID, opts.UserID, alerting.MarginSpec{
			ItemID:       itemID,
			MinMarginPct: opts.MinMarginPct,
			MinMarginGp:  opts.MinMarginGp,
		})
	default:
		return fmt.Errorf("unknown alert kind %q (want target, change or margin)", opts.Kind)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "created %s alert %s for item %d\n", def.Kind, def.ID, itemID)
	return nil
}

// ListUserAlerts prints a user's stored alerts.
func (a *App) ListUserAlerts(serverID, userID string) error {
	engine, err := a.newEngine(nil, nil)
	if err != nil {
		return err
	}

	defs := engine.ListAlerts(serverID, userID)
	if len(defs) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tKind\tItem\tDetail\tTriggered\tCreated (UTC)")

	for _, def := range defs {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%t\t%s\n",
			def.ID,
			def.Kind,
			def.ItemID(),
			describeDefinition(def),
			def.Triggered,
			def.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	writer.Flush()
	return nil
}

func describeDefinition(def alerting.Definition) string {
	switch def.Kind {
	case alerting.KindPriceTarget:
		if spec := def.PriceTarget; spec != nil {
			return fmt.Sprintf("%s %d gp", spec.Direction, spec.TargetPrice)
		}
	case alerting.KindPriceChange:
		if spec := def.PriceChange; spec != nil {
			return fmt.Sprintf("%+.1f%% over %.1fh", spec.ThresholdPct, spec.WindowHours)
		}
	case alerting.KindMargin:
		if spec := def.Margin; spec != nil {
			return fmt.Sprintf(">=%.1f%% and >=%d gp", spec.MinMarginPct, spec.MinMarginGp)
		}
	}
	return ""
}

// DeleteUserAlert removes one stored alert by id.
func (a *App) DeleteUserAlert(serverID, userID, id string) error {
	engine, err := a.newEngine(nil, nil)
	if err != nil {
		return err
	}
	if !engine.DeleteAlert(serverID, userID, id) {
		return fmt.Errorf("alert %s not found", id)
	}
	fmt.Fprintf(os.Stdout, "deleted alert %s\n", id)
	return nil
}

// SetServerConfig applies partial updates to a server's alerting
// configuration.
func (a *App) SetServerConfig(opts ServerSetOptions) error {
	if opts.ServerID == "" {
		return errors.New("--server is required")
	}

	engine, err := a.newEngine(nil, nil)
	if err != nil {
		return err
	}

	cfg := engine.UpdateServerConfig(opts.ServerID, func(cfg *alerting.ServerConfig) {
		if opts.Enabled != nil {
			cfg.Enabled = *opts.Enabled
		}
		if opts.ChannelID != nil {
			cfg.ChannelID = *opts.ChannelID
		}
		if opts.PumpEnabled != nil {
			cfg.PumpEnabled = *opts.PumpEnabled
		}
		if opts.DumpEnabled != nil {
			cfg.DumpEnabled = *opts.DumpEnabled
		}
		if opts.CrashEnabled != nil {
			cfg.CrashEnabled = *opts.CrashEnabled
		}
		if opts.SpikeEnabled != nil {
			cfg.SpikeEnabled = *opts.SpikeEnabled
		}
		if opts.UnusualEnabled != nil {
			cfg.UnusualEnabled = *opts.UnusualEnabled
		}
		if opts.TimeframeHours != nil {
			cfg.TimeframeHours = *opts.TimeframeHours
		}
		if opts.Cooldown != nil {
			cfg.Cooldown = *opts.Cooldown
		}
		if opts.MaxAlertsPerHour != nil {
			cfg.MaxAlertsPerHour = *opts.MaxAlertsPerHour
		}
	})

	fmt.Fprintf(os.Stdout, "server %s: enabled=%t channel=%q cooldown=%s\n",
		opts.ServerID, cfg.Enabled, cfg.ChannelID, cfg.Cooldown)
	return nil
}

// SetWatchlist replaces a server's watchlist with the given items. An empty
// list clears it, which widens the scan back to the liquid universe.
func (a *App) SetWatchlist(ctx context.Context, serverID string, items []string) error {
	if serverID == "" {
		return errors.New("--server is required")
	}

	itemIDs, err := a.resolveItemIDs(ctx, items)
	if err != nil {
		return err
	}

	engine, err := a.newEngine(nil, nil)
	if err != nil {
		return err
	}
	engine.SetWatchlist(serverID, itemIDs)

	if len(itemIDs) == 0 {
		fmt.Fprintf(os.Stdout, "server %s: watchlist cleared; scans cover all liquid items\n", serverID)
	} else {
		fmt.Fprintf(os.Stdout, "server %s: watchlist set to %d items\n", serverID, len(itemIDs))
	}
	return nil
}
