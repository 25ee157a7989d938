package alerting

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

type catalogStub struct {
	items []geapi.ItemMapping
}

func (c *catalogStub) FetchMapping(ctx context.Context) ([]geapi.ItemMapping, error) {
	return c.items, nil
}

type latestStub struct {
	snapshot map[int]geapi.LatestPrice
}

func (l *latestStub) FetchLatest(ctx context.Context) (map[int]geapi.LatestPrice, error) {
	return l.snapshot, nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type memState struct {
	state State
	saves []State
}

func (m *memState) Load() (State, error) { return m.state, nil }

func (m *memState) Save(s State) error {
	m.saves = append(m.saves, s)
	return nil
}

func i64(v int64) *int64 { return &v }

type market struct {
	store  *pricestore.Store
	latest *latestStub
	clock  *testClock
	ts     int64
}

func newMarket(t *testing.T, items []geapi.ItemMapping) *market {
	t.Helper()

	clock := &testClock{now: time.Unix(1700000000, 0).UTC()}
	latest := &latestStub{}
	store := pricestore.NewStore(&catalogStub{items: items}, latest, pricestore.Options{
		HistoryCap: 500,
		Clock:      clock.Now,
	}, zerolog.Nop())

	if len(items) > 0 {
		if err := store.RefreshCatalog(context.Background()); err != nil {
			t.Fatalf("catalog refresh failed: %v", err)
		}
	}
	return &market{store: store, latest: latest, clock: clock, ts: 1700000000}
}

func (m *market) push(t *testing.T, prices map[int][2]int64, step time.Duration) {
	t.Helper()

	snapshot := make(map[int]geapi.LatestPrice, len(prices))
	for id, hl := range prices {
		snapshot[id] = geapi.LatestPrice{
			High: i64(hl[0]), HighTime: i64(m.ts),
			Low: i64(hl[1]), LowTime: i64(m.ts),
		}
	}
	m.latest.snapshot = snapshot
	if err := m.store.RefreshPrices(context.Background()); err != nil {
		t.Fatalf("price refresh failed: %v", err)
	}
	m.clock.now = m.clock.now.Add(step)
	m.ts += int64(step / time.Second)
}

func (m *market) analytics() *analytics.Analytics {
	params := analytics.DefaultParams()
	params.CacheTTL = 0
	return analytics.New(m.store, params, zerolog.Nop())
}

func testDefaults() ServerConfig {
	return ServerConfig{
		Crash:                TierThresholds{ModeratePct: 10, SeverePct: 20, ExtremePct: 35},
		Spike:                TierThresholds{ModeratePct: 10, SeverePct: 20, ExtremePct: 35},
		TimeframeHours:       1,
		PumpMinIncreasePct:   8,
		PumpSustainedPeriods: 3,
		DumpMinDropPct:       5,
		UnusualMinScore:      60,
		Cooldown:             30 * time.Minute,
		MaxAlertsPerHour:     10,
	}
}

func newTestEngine(m *market, state StateStore) *Engine {
	return NewEngine(m.store, m.analytics(), state, Options{
		Defaults: testDefaults(),
		Clock:    m.clock.Now,
	}, zerolog.Nop())
}

func TestUserAlertOneShot(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{{ID: 1, Name: "Abyssal whip"}})
	m.push(t, map[int][2]int64{1: {1100, 1000}}, time.Minute)

	state := &memState{state: NewState()}
	engine := newTestEngine(m, state)

	if _, err := engine.AddPriceTargetAlert("s1", "u1", PriceTargetSpec{
		ItemID:      1,
		TargetPrice: 1000,
		Direction:   DirectionAbove,
	}); err != nil {
		t.Fatalf("AddPriceTargetAlert failed: %v", err)
	}

	payloads := engine.Scan(context.Background())
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	p := payloads[0]
	if p.Type != PayloadPriceTarget || p.Price != 1100 || p.TargetPrice != 1000 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.Item.Name != "Abyssal whip" {
		t.Fatalf("payload should carry the item name, got %+v", p.Item)
	}

	// one-shot: consumed by the scan regardless of delivery
	if again := engine.Scan(context.Background()); len(again) != 0 {
		t.Fatalf("triggered alert must not fire twice, got %d payloads", len(again))
	}

	defs := engine.ListAlerts("s1", "u1")
	if len(defs) != 1 || !defs[0].Triggered {
		t.Fatalf("definition should be retained and marked triggered: %+v", defs)
	}
}

func TestUserAlertValidation(t *testing.T) {
	m := newMarket(t, nil)
	engine := newTestEngine(m, &memState{state: NewState()})

	if _, err := engine.AddPriceTargetAlert("s1", "u1", PriceTargetSpec{ItemID: 1, TargetPrice: 100, Direction: "sideways"}); err == nil {
		t.Fatal("unknown direction should be rejected")
	}
	if _, err := engine.AddPriceChangeAlert("s1", "u1", PriceChangeSpec{ItemID: 1, ThresholdPct: 0, WindowHours: 1}); err == nil {
		t.Fatal("zero threshold should be rejected")
	}
}

func TestServerDumpScanCooldown(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{{ID: 1, Name: "Crashing item"}})
	for _, high := range []int64{1000, 1000, 900} {
		m.push(t, map[int][2]int64{1: {high, high - 10}}, 15*time.Minute)
	}

	engine := newTestEngine(m, &memState{state: NewState()})
	engine.UpdateServerConfig("s1", func(cfg *ServerConfig) {
		cfg.Enabled = true
		cfg.DumpEnabled = true
		cfg.ChannelID = "chan"
	})
	engine.SetWatchlist("s1", []int{1})

	payloads := engine.Scan(context.Background())
	if len(payloads) != 1 || payloads[0].Type != PayloadDump {
		t.Fatalf("expected one dump payload, got %+v", payloads)
	}
	if payloads[0].ChannelID != "chan" {
		t.Fatalf("payload should route to the server channel, got %q", payloads[0].ChannelID)
	}

	// scanning again without committing re-detects; nothing is on cooldown yet
	if again := engine.Scan(context.Background()); len(again) != 1 {
		t.Fatalf("uncommitted candidate should re-detect, got %d", len(again))
	}

	if !engine.Commit(payloads[0]) {
		t.Fatal("commit should admit the payload")
	}

	if after := engine.Scan(context.Background()); len(after) != 0 {
		t.Fatalf("committed signal must be cooldown-gated, got %d payloads", len(after))
	}
}

func TestCommitRateCeiling(t *testing.T) {
	m := newMarket(t, nil)
	engine := newTestEngine(m, &memState{state: NewState()})
	engine.UpdateServerConfig("s1", func(cfg *ServerConfig) {
		cfg.MaxAlertsPerHour = 2
	})

	payload := func(itemID int) Payload {
		return Payload{Type: PayloadDump, ServerID: "s1", ChannelID: "chan", Item: ItemRef{ID: itemID}}
	}

	if !engine.Commit(payload(1)) || !engine.Commit(payload(2)) {
		t.Fatal("first two payloads should be admitted")
	}
	if engine.Commit(payload(3)) {
		t.Fatal("third payload within the hour should be dropped")
	}

	m.clock.Advance(61 * time.Minute)
	if !engine.Commit(payload(4)) {
		t.Fatal("a fresh hour window should admit again")
	}
}

func TestScanEmptyWatchlistCoversLiquidUniverse(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{{ID: 1, Name: "First"}, {ID: 2, Name: "Second"}})
	for _, highs := range [][2]int64{{1000, 1000}, {1000, 1000}, {900, 900}} {
		m.push(t, map[int][2]int64{
			1: {highs[0], highs[0] - 10},
			2: {highs[1], highs[1] - 10},
		}, 15*time.Minute)
	}

	engine := newTestEngine(m, &memState{state: NewState()})
	engine.UpdateServerConfig("s1", func(cfg *ServerConfig) {
		cfg.Enabled = true
		cfg.DumpEnabled = true
	})

	payloads := engine.Scan(context.Background())
	if len(payloads) != 2 {
		t.Fatalf("expected a dump payload per liquid item, got %d", len(payloads))
	}
	seen := map[int]bool{}
	for _, p := range payloads {
		seen[p.Item.ID] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected items 1 and 2, got %+v", payloads)
	}
}

func TestStatePersistenceRoundTrip(t *testing.T) {
	m := newMarket(t, nil)
	state := &memState{state: NewState()}
	engine := newTestEngine(m, state)

	def, err := engine.AddMarginAlert("s1", "u1", MarginSpec{ItemID: 1, MinMarginGp: 50})
	if err != nil {
		t.Fatalf("AddMarginAlert failed: %v", err)
	}
	engine.SetWatchlist("s1", []int{1, 2, 3})
	engine.UpdateServerConfig("s1", func(cfg *ServerConfig) { cfg.Enabled = true })

	if len(state.saves) == 0 {
		t.Fatal("mutations should persist state")
	}
	saved := state.saves[len(state.saves)-1]

	rehydrated := newTestEngine(m, &memState{state: saved})
	if err := rehydrated.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	defs := rehydrated.ListAlerts("s1", "u1")
	if len(defs) != 1 || defs[0].ID != def.ID {
		t.Fatalf("alert should survive a round trip: %+v", defs)
	}
	if got := rehydrated.Watchlist("s1"); len(got) != 3 {
		t.Fatalf("watchlist should survive a round trip: %v", got)
	}
	if !rehydrated.ServerConfig("s1").Enabled {
		t.Fatal("server config should survive a round trip")
	}
}
