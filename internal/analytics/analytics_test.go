package analytics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

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

func i64(v int64) *int64 { return &v }

// market bundles a store and clock seeded through real refreshes.
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

// push appends one observation per item and advances the clock by step.
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

// pushSeries seeds a single item's instant-buy series with a fixed spread.
func (m *market) pushSeries(t *testing.T, itemID int, highs []int64, step time.Duration) {
	t.Helper()
	for _, high := range highs {
		m.push(t, map[int][2]int64{itemID: {high, high - 10}}, step)
	}
}

func testAnalytics(store *pricestore.Store) *Analytics {
	params := DefaultParams()
	params.CacheTTL = 0
	return New(store, params, zerolog.Nop())
}

func TestTax(t *testing.T) {
	an := testAnalytics(nil)

	cases := []struct {
		price int64
		want  int64
	}{
		{50, 0},
		{99, 0},
		{100, 1},
		{1000, 10},
		{1999, 19},
		{600_000_000, 5_000_000},
	}
	for _, tc := range cases {
		if got := an.Tax(tc.price); got != tc.want {
			t.Fatalf("Tax(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestMargin(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{{ID: 1, Name: "Test item", Limit: 50}})
	m.push(t, map[int][2]int64{1: {1100, 1000}}, time.Minute)

	an := testAnalytics(m.store)
	result, ok := an.Margin(1)
	if !ok {
		t.Fatal("margin should be computable")
	}

	if result.BuyAt != 1000 || result.SellAt != 1100 {
		t.Fatalf("unexpected buy/sell: %+v", result)
	}
	if result.Tax != 11 {
		t.Fatalf("tax on sale of 1100 should be 11, got %d", result.Tax)
	}
	if result.Margin != 89 {
		t.Fatalf("margin should be 89, got %d", result.Margin)
	}
	if math.Abs(result.MarginPct-8.9) > 1e-9 {
		t.Fatalf("margin pct should be 8.9, got %f", result.MarginPct)
	}
	if result.MaxProfit != 4450 {
		t.Fatalf("max profit should be 4450, got %d", result.MaxProfit)
	}
	if math.Abs(result.ROIPerHour-8.9/4) > 1e-9 {
		t.Fatalf("unexpected ROI per hour: %f", result.ROIPerHour)
	}
}

func TestMarginMissingSide(t *testing.T) {
	m := newMarket(t, nil)
	m.latest.snapshot = map[int]geapi.LatestPrice{1: {High: i64(1100), HighTime: i64(m.ts)}}
	if err := m.store.RefreshPrices(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if _, ok := testAnalytics(m.store).Margin(1); ok {
		t.Fatal("margin with one side missing should be unknown")
	}
}

func TestPriceChange(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1000, 1100}, 30*time.Minute)

	change, ok := testAnalytics(m.store).PriceChange(1, 1)
	if !ok {
		t.Fatal("price change should be computable")
	}
	if math.Abs(change-10) > 1e-9 {
		t.Fatalf("expected +10%%, got %f", change)
	}
}

func TestPriceChangeUnknownWithoutHistory(t *testing.T) {
	m := newMarket(t, nil)
	m.push(t, map[int][2]int64{1: {1000, 990}}, time.Minute)

	if _, ok := testAnalytics(m.store).PriceChange(1, 1); ok {
		t.Fatal("a single sample should not yield a change")
	}
}

func TestVolatilityNeedsSamples(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{100, 101, 102}, time.Minute)

	an := testAnalytics(m.store)
	if _, ok := an.Volatility(1); ok {
		t.Fatal("volatility below the sample floor should be unknown")
	}

	m.pushSeries(t, 1, []int64{100, 100, 100, 100, 100, 100, 100, 100, 100}, time.Minute)
	vol, ok := an.Volatility(1)
	if !ok {
		t.Fatal("volatility should be computable with enough samples")
	}
	if vol < 0 {
		t.Fatalf("volatility must be non-negative, got %f", vol)
	}
}

func TestCorrelationNeedsPairs(t *testing.T) {
	m := newMarket(t, nil)
	for i := int64(0); i < 12; i++ {
		m.push(t, map[int][2]int64{
			1: {100 + i, 90 + i},
			2: {200 + 2*i, 180 + 2*i},
		}, time.Minute)
	}

	an := testAnalytics(m.store)
	corr, ok := an.Correlation(1, 2)
	if !ok {
		t.Fatal("correlation should be computable")
	}
	if math.Abs(corr-1) > 1e-9 {
		t.Fatalf("linearly related series should correlate at 1, got %f", corr)
	}

	if _, ok := an.Correlation(1, 99); ok {
		t.Fatal("correlation without overlapping history should be unknown")
	}
}

func TestTrendStrongUp(t *testing.T) {
	m := newMarket(t, nil)
	highs := make([]int64, 30)
	for i := range highs {
		highs[i] = int64(1000 + 10*i)
	}
	m.pushSeries(t, 1, highs, time.Minute)

	result, ok := testAnalytics(m.store).Trend(1)
	if !ok {
		t.Fatal("trend should be computable")
	}
	if result.Strength != 3 || result.Direction != TrendStrongUp {
		t.Fatalf("rising series should be strong-up with strength 3, got %+v", result)
	}
}

func TestCachedResultsAreStable(t *testing.T) {
	m := newMarket(t, nil)
	m.pushSeries(t, 1, []int64{1000, 1000, 1100}, 30*time.Minute)

	params := DefaultParams()
	params.CacheTTL = time.Minute
	an := New(m.store, params, zerolog.Nop())

	first, ok := an.PriceChange(1, 1)
	if !ok {
		t.Fatal("price change should be computable")
	}

	// a new observation within the TTL must not change the cached answer
	m.push(t, map[int][2]int64{1: {2000, 1900}}, time.Minute)
	second, ok := an.PriceChange(1, 1)
	if !ok || first != second {
		t.Fatalf("cached value should be stable within TTL: %f vs %f", first, second)
	}
}
