package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	GeAPI     GeAPIConfig     `mapstructure:"geapi"`
	Store     StoreConfig     `mapstructure:"store"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	DumpWatch DumpWatchConfig `mapstructure:"dumpwatch"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates the optional PostgreSQL audit store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the cadence of the refresh and scan loops. Price
// refresh runs faster than alert evaluation; the dump watch has its own
// interval under DumpWatchConfig.
type SchedulerConfig struct {
	PriceInterval time.Duration `mapstructure:"price_interval"`
	ScanInterval  time.Duration `mapstructure:"scan_interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// GeAPIConfig covers access to the public GE price API.
type GeAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// StoreConfig bounds the in-memory price store.
type StoreConfig struct {
	HistoryCap   int   `mapstructure:"history_cap"`
	MinScanPrice int64 `mapstructure:"min_scan_price"`
}

// AnalyticsConfig carries the tunables behind derived metrics. Tax rate,
// floor and cap mirror the GE transaction tax and should only change if the
// game does.
type AnalyticsConfig struct {
	TaxRate              float64       `mapstructure:"tax_rate"`
	TaxCapGp             int64         `mapstructure:"tax_cap_gp"`
	TaxFloorGp           int64         `mapstructure:"tax_floor_gp"`
	BuyLimitWindowHours  float64       `mapstructure:"buy_limit_window_hours"`
	RSIPeriod            int           `mapstructure:"rsi_period"`
	MinVolatilitySamples int           `mapstructure:"min_volatility_samples"`
	MinCorrelationPairs  int           `mapstructure:"min_correlation_pairs"`
	FastMAPeriods        int           `mapstructure:"fast_ma_periods"`
	MediumMAPeriods      int           `mapstructure:"medium_ma_periods"`
	SlowMAPeriods        int           `mapstructure:"slow_ma_periods"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
}

// AlertingConfig defines engine state location and per-server defaults. Every
// field under Defaults can be overridden per server at runtime.
type AlertingConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	StatePath      string         `mapstructure:"state_path"`
	CooldownMaxAge time.Duration  `mapstructure:"cooldown_max_age"`
	Defaults       ServerDefaults `mapstructure:"defaults"`
}

// ServerDefaults seed a server configuration on first access.
type ServerDefaults struct {
	CrashModeratePct     float64       `mapstructure:"crash_moderate_pct"`
	CrashSeverePct       float64       `mapstructure:"crash_severe_pct"`
	CrashExtremePct      float64       `mapstructure:"crash_extreme_pct"`
	SpikeModeratePct     float64       `mapstructure:"spike_moderate_pct"`
	SpikeSeverePct       float64       `mapstructure:"spike_severe_pct"`
	SpikeExtremePct      float64       `mapstructure:"spike_extreme_pct"`
	TimeframeHours       float64       `mapstructure:"timeframe_hours"`
	PumpMinIncreasePct   float64       `mapstructure:"pump_min_increase_pct"`
	PumpSustainedPeriods int           `mapstructure:"pump_sustained_periods"`
	DumpMinDropPct       float64       `mapstructure:"dump_min_drop_pct"`
	UnusualMinScore      float64       `mapstructure:"unusual_min_score"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
	MaxAlertsPerHour     int           `mapstructure:"max_alerts_per_hour"`
}

// DumpWatchConfig parameterises the tiered dump-watch profile.
type DumpWatchConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	ChannelID      string        `mapstructure:"channel_id"`
	DealPct        float64       `mapstructure:"deal_pct"`
	OpportunityPct float64       `mapstructure:"opportunity_pct"`
	PanicPct       float64       `mapstructure:"panic_pct"`
}

// NotifierConfig routes structured alert payloads to the external sink.
type NotifierConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gewatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.price_interval", "1m")
	v.SetDefault("scheduler.scan_interval", "5m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("geapi.base_url", "https://prices.runescape.wiki/api/v1/osrs")
	v.SetDefault("geapi.user_agent", "gewatcher/1.0")
	v.SetDefault("geapi.request_timeout", "10s")
	v.SetDefault("geapi.rate_limit_rps", 2.0)
	v.SetDefault("geapi.rate_limit_burst", 4)

	v.SetDefault("store.history_cap", 360)
	v.SetDefault("store.min_scan_price", 100)

	v.SetDefault("analytics.tax_rate", 0.01)
	v.SetDefault("analytics.tax_cap_gp", 5_000_000)
	v.SetDefault("analytics.tax_floor_gp", 100)
	v.SetDefault("analytics.buy_limit_window_hours", 4)
	v.SetDefault("analytics.rsi_period", 14)
	v.SetDefault("analytics.min_volatility_samples", 12)
	v.SetDefault("analytics.min_correlation_pairs", 10)
	v.SetDefault("analytics.fast_ma_periods", 5)
	v.SetDefault("analytics.medium_ma_periods", 12)
	v.SetDefault("analytics.slow_ma_periods", 24)
	v.SetDefault("analytics.cache_ttl", "30s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.state_path", "state/alerts.json")
	v.SetDefault("alerting.cooldown_max_age", "24h")
	v.SetDefault("alerting.defaults.crash_moderate_pct", 10)
	v.SetDefault("alerting.defaults.crash_severe_pct", 20)
	v.SetDefault("alerting.defaults.crash_extreme_pct", 35)
	v.SetDefault("alerting.defaults.spike_moderate_pct", 10)
	v.SetDefault("alerting.defaults.spike_severe_pct", 20)
	v.SetDefault("alerting.defaults.spike_extreme_pct", 35)
	v.SetDefault("alerting.defaults.timeframe_hours", 1)
	v.SetDefault("alerting.defaults.pump_min_increase_pct", 8)
	v.SetDefault("alerting.defaults.pump_sustained_periods", 3)
	v.SetDefault("alerting.defaults.dump_min_drop_pct", 5)
	v.SetDefault("alerting.defaults.unusual_min_score", 60)
	v.SetDefault("alerting.defaults.cooldown", "30m")
	v.SetDefault("alerting.defaults.max_alerts_per_hour", 10)

	v.SetDefault("dumpwatch.enabled", false)
	v.SetDefault("dumpwatch.interval", "2m")
	v.SetDefault("dumpwatch.cooldown", "20m")
	v.SetDefault("dumpwatch.deal_pct", 5)
	v.SetDefault("dumpwatch.opportunity_pct", 10)
	v.SetDefault("dumpwatch.panic_pct", 20)

	v.SetDefault("notifier.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.PriceInterval <= 0 {
		return fmt.Errorf("scheduler.price_interval must be greater than zero")
	}
	if c.Scheduler.ScanInterval <= 0 {
		return fmt.Errorf("scheduler.scan_interval must be greater than zero")
	}
	if c.GeAPI.UserAgent == "" {
		return fmt.Errorf("geapi.user_agent is required by the price API")
	}
	if c.Store.HistoryCap < 2 {
		return fmt.Errorf("store.history_cap must be at least 2")
	}
	if c.Analytics.TaxRate < 0 || c.Analytics.TaxRate >= 1 {
		return fmt.Errorf("analytics.tax_rate must be in [0, 1)")
	}
	if c.Analytics.TaxCapGp <= 0 {
		return fmt.Errorf("analytics.tax_cap_gp must be greater than zero")
	}
	if c.Analytics.BuyLimitWindowHours <= 0 {
		return fmt.Errorf("analytics.buy_limit_window_hours must be greater than zero")
	}
	if c.Analytics.RSIPeriod < 2 {
		return fmt.Errorf("analytics.rsi_period must be at least 2")
	}
	if d := c.Alerting.Defaults; d.CrashModeratePct > d.CrashSeverePct || d.CrashSeverePct > d.CrashExtremePct {
		return fmt.Errorf("alerting crash tiers must be non-decreasing")
	}
	if d := c.Alerting.Defaults; d.SpikeModeratePct > d.SpikeSeverePct || d.SpikeSeverePct > d.SpikeExtremePct {
		return fmt.Errorf("alerting spike tiers must be non-decreasing")
	}
	if c.Alerting.Defaults.MaxAlertsPerHour <= 0 {
		return fmt.Errorf("alerting.defaults.max_alerts_per_hour must be greater than zero")
	}
	if c.DumpWatch.Enabled {
		d := c.DumpWatch
		if d.DealPct > d.OpportunityPct || d.OpportunityPct > d.PanicPct {
			return fmt.Errorf("dumpwatch tiers must be non-decreasing")
		}
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
