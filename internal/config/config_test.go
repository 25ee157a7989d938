package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Scheduler.PriceInterval != time.Minute {
		t.Fatalf("unexpected default price interval: %s", cfg.Scheduler.PriceInterval)
	}
	if cfg.Scheduler.ScanInterval != 5*time.Minute {
		t.Fatalf("unexpected default scan interval: %s", cfg.Scheduler.ScanInterval)
	}
	if cfg.Analytics.TaxRate != 0.01 || cfg.Analytics.TaxCapGp != 5_000_000 {
		t.Fatalf("unexpected tax defaults: %+v", cfg.Analytics)
	}
	if cfg.GeAPI.UserAgent == "" {
		t.Fatal("default user agent must not be empty")
	}
	if cfg.Alerting.Defaults.Cooldown != 30*time.Minute {
		t.Fatalf("unexpected default cooldown: %s", cfg.Alerting.Defaults.Cooldown)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
scheduler:
  price_interval: 30s
  scan_interval: 2m
geapi:
  user_agent: "gewatcher-test/1.0"
alerting:
  enabled: true
  defaults:
    dump_min_drop_pct: 7.5
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.PriceInterval != 30*time.Second {
		t.Fatalf("file value should override default, got %s", cfg.Scheduler.PriceInterval)
	}
	if cfg.GeAPI.UserAgent != "gewatcher-test/1.0" {
		t.Fatalf("unexpected user agent: %q", cfg.GeAPI.UserAgent)
	}
	if !cfg.Alerting.Enabled || cfg.Alerting.Defaults.DumpMinDropPct != 7.5 {
		t.Fatalf("nested overrides lost: %+v", cfg.Alerting)
	}
	// untouched defaults survive partial files
	if cfg.Store.HistoryCap != 360 {
		t.Fatalf("default history cap lost: %d", cfg.Store.HistoryCap)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return cfg
	}

	cfg := base(t)
	cfg.Analytics.TaxRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("tax rate above 1 should be rejected")
	}

	cfg = base(t)
	cfg.Scheduler.PriceInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero price interval should be rejected")
	}

	cfg = base(t)
	cfg.Alerting.Defaults.CrashSeverePct = 5 // below moderate
	if err := cfg.Validate(); err == nil {
		t.Fatal("non-monotonic crash tiers should be rejected")
	}

	cfg = base(t)
	cfg.GeAPI.UserAgent = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty user agent should be rejected")
	}
}
