package alerting

import "time"

// TierThresholds grade a percent move at three escalating magnitudes.
type TierThresholds struct {
	ModeratePct float64 `json:"moderate_pct"`
	SeverePct   float64 `json:"severe_pct"`
	ExtremePct  float64 `json:"extreme_pct"`
}

// ServerConfig is per-server alerting configuration. Created lazily with the
// engine defaults on first access; disabled rather than deleted.
type ServerConfig struct {
	Enabled   bool   `json:"enabled"`
	ChannelID string `json:"channel_id"`

	Crash          TierThresholds `json:"crash"`
	Spike          TierThresholds `json:"spike"`
	TimeframeHours float64        `json:"timeframe_hours"`

	PumpEnabled    bool `json:"pump_enabled"`
	DumpEnabled    bool `json:"dump_enabled"`
	CrashEnabled   bool `json:"crash_enabled"`
	SpikeEnabled   bool `json:"spike_enabled"`
	UnusualEnabled bool `json:"unusual_enabled"`

	PumpMinIncreasePct   float64 `json:"pump_min_increase_pct"`
	PumpSustainedPeriods int     `json:"pump_sustained_periods"`
	DumpMinDropPct       float64 `json:"dump_min_drop_pct"`
	UnusualMinScore      float64 `json:"unusual_min_score"`

	Cooldown         time.Duration `json:"cooldown"`
	MaxAlertsPerHour int           `json:"max_alerts_per_hour"`
}
