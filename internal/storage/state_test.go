package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Craigmuzza/PVPStore-sub000/internal/alerting"
)

func TestFileStateStoreMissingFile(t *testing.T) {
	store := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))

	state, err := store.Load()
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if state.Alerts == nil || state.Servers == nil || state.Watchlists == nil {
		t.Fatalf("missing file should yield an initialised empty state: %+v", state)
	}
	if len(state.Alerts) != 0 {
		t.Fatalf("expected empty state, got %+v", state)
	}
}

func TestFileStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStateStore(path)

	state := alerting.NewState()
	state.Alerts["s1/u1"] = []alerting.Definition{{
		ID:        "abc",
		ServerID:  "s1",
		UserID:    "u1",
		Kind:      alerting.KindPriceTarget,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		PriceTarget: &alerting.PriceTargetSpec{
			ItemID:      4151,
			TargetPrice: 1500000,
			Direction:   alerting.DirectionBelow,
		},
	}}
	state.Servers["s1"] = alerting.ServerConfig{Enabled: true, ChannelID: "chan", Cooldown: 30 * time.Minute}
	state.Watchlists["s1"] = []int{4151, 2}

	if err := store.Save(state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	defs := loaded.Alerts["s1/u1"]
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %+v", loaded.Alerts)
	}
	def := defs[0]
	if def.ID != "abc" || def.Kind != alerting.KindPriceTarget {
		t.Fatalf("definition identity lost: %+v", def)
	}
	if def.PriceTarget == nil || def.PriceTarget.TargetPrice != 1500000 || def.PriceTarget.Direction != alerting.DirectionBelow {
		t.Fatalf("spec lost in round trip: %+v", def.PriceTarget)
	}
	if !def.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("created timestamp lost: %v", def.CreatedAt)
	}

	cfg := loaded.Servers["s1"]
	if !cfg.Enabled || cfg.ChannelID != "chan" || cfg.Cooldown != 30*time.Minute {
		t.Fatalf("server config lost in round trip: %+v", cfg)
	}

	if items := loaded.Watchlists["s1"]; len(items) != 2 || items[0] != 4151 {
		t.Fatalf("watchlist lost in round trip: %v", items)
	}
}

func TestFileStateStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStateStore(path)

	first := alerting.NewState()
	first.Watchlists["s1"] = []int{1}
	if err := store.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := alerting.NewState()
	second.Watchlists["s1"] = []int{2, 3}
	if err := store.Save(second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if items := loaded.Watchlists["s1"]; len(items) != 2 || items[0] != 2 {
		t.Fatalf("latest snapshot should win: %v", items)
	}
}
