package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/alerting"
	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
	"github.com/Craigmuzza/PVPStore-sub000/internal/config"
	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
	"github.com/Craigmuzza/PVPStore-sub000/internal/scheduler"
	"github.com/Craigmuzza/PVPStore-sub000/internal/service"
	"github.com/Craigmuzza/PVPStore-sub000/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() *geapi.Client {
	cfg := a.Config.GeAPI
	return geapi.NewClient(geapi.Options{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
		RateRPS:   cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	}, a.Logger)
}

func (a *App) newPriceStore(client *geapi.Client) *pricestore.Store {
	return pricestore.NewStore(client, client, pricestore.Options{
		HistoryCap:   a.Config.Store.HistoryCap,
		MinScanPrice: a.Config.Store.MinScanPrice,
	}, a.Logger)
}

func (a *App) newAnalytics(store *pricestore.Store) *analytics.Analytics {
	cfg := a.Config.Analytics
	return analytics.New(store, analytics.Params{
		TaxRate:              cfg.TaxRate,
		TaxCapGp:             cfg.TaxCapGp,
		TaxFloorGp:           cfg.TaxFloorGp,
		BuyLimitWindowHours:  cfg.BuyLimitWindowHours,
		RSIPeriod:            cfg.RSIPeriod,
		MinVolatilitySamples: cfg.MinVolatilitySamples,
		MinCorrelationPairs:  cfg.MinCorrelationPairs,
		FastMAPeriods:        cfg.FastMAPeriods,
		MediumMAPeriods:      cfg.MediumMAPeriods,
		SlowMAPeriods:        cfg.SlowMAPeriods,
		CacheTTL:             cfg.CacheTTL,
	}, a.Logger)
}

func (a *App) defaultServerConfig() alerting.ServerConfig {
	d := a.Config.Alerting.Defaults
	return alerting.ServerConfig{
		Crash: alerting.TierThresholds{
			ModeratePct: d.CrashModeratePct,
			SeverePct:   d.CrashSeverePct,
			ExtremePct:  d.CrashExtremePct,
		},
		Spike: alerting.TierThresholds{
			ModeratePct: d.SpikeModeratePct,
			SeverePct:   d.SpikeSeverePct,
			ExtremePct:  d.SpikeExtremePct,
		},
		TimeframeHours:       d.TimeframeHours,
		PumpEnabled:          true,
		DumpEnabled:          true,
		CrashEnabled:         true,
		SpikeEnabled:         true,
		UnusualEnabled:       true,
		PumpMinIncreasePct:   d.PumpMinIncreasePct,
		PumpSustainedPeriods: d.PumpSustainedPeriods,
		DumpMinDropPct:       d.DumpMinDropPct,
		UnusualMinScore:      d.UnusualMinScore,
		Cooldown:             d.Cooldown,
		MaxAlertsPerHour:     d.MaxAlertsPerHour,
	}
}

// newEngine builds an alert engine over the JSON state file. Management
// commands pass nil market data since they never scan.
func (a *App) newEngine(store *pricestore.Store, an *analytics.Analytics) (*alerting.Engine, error) {
	state := storage.NewFileStateStore(a.Config.Alerting.StatePath)
	engine := alerting.NewEngine(store, an, state, alerting.Options{
		Defaults:       a.defaultServerConfig(),
		CooldownMaxAge: a.Config.Alerting.CooldownMaxAge,
	}, a.Logger)
	if err := engine.Load(); err != nil {
		return nil, err
	}
	return engine, nil
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Notifier
	if cfg.WebhookURL == "" {
		return nil
	}
	return alerting.NewWebhookNotifier(cfg.WebhookURL, cfg.RequestTimeout, a.Logger)
}

func (a *App) openAuditStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running watcher service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	audit, closeAudit, err := a.openAuditStore(ctx)
	if err != nil {
		return err
	}
	if audit == nil {
		a.Logger.Warn().Msg("database.dsn not configured; sample and alert persistence disabled")
	}
	if closeAudit != nil {
		defer closeAudit()
	}

	client := a.newClient()
	store := a.newPriceStore(client)
	an := a.newAnalytics(store)
	notifier := a.newNotifier()
	if notifier == nil {
		a.Logger.Warn().Msg("notifier.webhook_url not configured; alerts will be logged only")
	}

	sched := a.Config.Scheduler
	opts := service.Options{
		PriceScheduler: scheduler.New(scheduler.Options{
			Name:         "price_refresh",
			Interval:     sched.PriceInterval,
			AlignToStart: sched.AlignToBucket,
			StartupDelay: sched.StartupDelay,
		}, a.Logger),
		Store:    store,
		Notifier: notifier,
	}
	if audit != nil {
		opts.Samples = audit
		opts.Audit = audit
	}

	if a.Config.Alerting.Enabled {
		engine, err := a.newEngine(store, an)
		if err != nil {
			return err
		}
		opts.Engine = engine
		opts.ScanScheduler = scheduler.New(scheduler.Options{
			Name:         "alert_scan",
			Interval:     sched.ScanInterval,
			AlignToStart: sched.AlignToBucket,
			StartupDelay: sched.StartupDelay,
		}, a.Logger)
	}

	if a.Config.DumpWatch.Enabled {
		cfg := a.Config.DumpWatch
		opts.Watcher = alerting.NewDumpWatcher(store, an, alerting.DumpWatchOptions{
			ChannelID:      cfg.ChannelID,
			Cooldown:       cfg.Cooldown,
			DealPct:        cfg.DealPct,
			OpportunityPct: cfg.OpportunityPct,
			PanicPct:       cfg.PanicPct,
		}, a.Logger)
		opts.DumpScheduler = scheduler.New(scheduler.Options{
			Name:         "dump_watch",
			Interval:     cfg.Interval,
			AlignToStart: sched.AlignToBucket,
			StartupDelay: sched.StartupDelay,
		}, a.Logger)
	}

	svc := service.New(opts, a.Logger)

	a.Logger.Info().Msg("starting watcher service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// ExportOptions hold parameters for exporting one item's samples.
type ExportOptions struct {
	Item      string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	Item   string
	From   time.Time
	To     time.Time
	Step   string
	DryRun bool
}

// ItemsOptions configure the items lookup command.
type ItemsOptions struct {
	Query string
	Limit int
}

// FlipsOptions configure the flips command.
type FlipsOptions struct {
	MinMarginPct float64
	MinMarginGp  int64
	MinBuyLimit  int
	Limit        int
}
