package analytics

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// Params carry the tunables behind derived metrics. The tax fields mirror the
// GE transaction tax: 1% of the sale price once it reaches the floor, capped.
type Params struct {
	TaxRate              float64
	TaxCapGp             int64
	TaxFloorGp           int64
	BuyLimitWindowHours  float64
	RSIPeriod            int
	MinVolatilitySamples int
	MinCorrelationPairs  int
	FastMAPeriods        int
	MediumMAPeriods      int
	SlowMAPeriods        int
	CacheTTL             time.Duration
}

// DefaultParams returns the domain defaults.
func DefaultParams() Params {
	return Params{
		TaxRate:              0.01,
		TaxCapGp:             5_000_000,
		TaxFloorGp:           100,
		BuyLimitWindowHours:  4,
		RSIPeriod:            14,
		MinVolatilitySamples: 12,
		MinCorrelationPairs:  10,
		FastMAPeriods:        5,
		MediumMAPeriods:      12,
		SlowMAPeriods:        24,
		CacheTTL:             30 * time.Second,
	}
}

// Analytics computes derived metrics over the price store. All methods are
// pure given the store's current state; missing or insufficient data is
// reported as ok=false, never as a zero. The only internal state is a short
// TTL read cache.
type Analytics struct {
	params Params
	store  *pricestore.Store
	logger zerolog.Logger
	clock  func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	itemID int
	metric string
	window float64
}

type cacheEntry struct {
	value   float64
	ok      bool
	expires time.Time
}

// New constructs an analytics instance over the given store.
func New(store *pricestore.Store, params Params, logger zerolog.Logger) *Analytics {
	if params.RSIPeriod < 2 {
		params.RSIPeriod = 14
	}
	return &Analytics{
		params: params,
		store:  store,
		logger: logging.Component(logger, "analytics"),
		clock:  time.Now,
		cache:  make(map[cacheKey]cacheEntry),
	}
}

// Tax returns the GE transaction tax on a sale at the given price.
func (a *Analytics) Tax(price int64) int64 {
	if price < a.params.TaxFloorGp {
		return 0
	}
	tax := int64(math.Floor(float64(price) * a.params.TaxRate))
	if tax > a.params.TaxCapGp {
		return a.params.TaxCapGp
	}
	return tax
}

// MarginResult describes the per-unit flip economics of an item. BuyAt is the
// instant-sell price (what a buy offer fills at), SellAt the instant-buy
// price; tax is charged on the sale.
type MarginResult struct {
	BuyAt      int64
	SellAt     int64
	Tax        int64
	Margin     int64
	MarginPct  float64
	ROIPerHour float64
	BuyLimit   int
	MaxProfit  int64
}

// Margin computes the flip margin for an item from its freshest price.
func (a *Analytics) Margin(itemID int) (MarginResult, bool) {
	point, ok := a.store.Price(itemID)
	if !ok || point.InstantBuy == nil || point.InstantSell == nil {
		return MarginResult{}, false
	}

	buyAt := *point.InstantSell
	sellAt := *point.InstantBuy
	if buyAt <= 0 {
		return MarginResult{}, false
	}

	tax := a.Tax(sellAt)
	margin := sellAt - buyAt - tax
	marginPct := float64(margin) / float64(buyAt) * 100

	result := MarginResult{
		BuyAt:      buyAt,
		SellAt:     sellAt,
		Tax:        tax,
		Margin:     margin,
		MarginPct:  marginPct,
		ROIPerHour: marginPct / a.params.BuyLimitWindowHours,
	}
	if item, ok := a.store.Item(itemID); ok && item.BuyLimit > 0 {
		result.BuyLimit = item.BuyLimit
		result.MaxProfit = margin * int64(item.BuyLimit)
	}
	return result, true
}

// PriceChange returns the percent change of the instant-buy price over the
// given window. Either endpoint missing, or a zero past price, is "unknown".
func (a *Analytics) PriceChange(itemID int, hoursBack float64) (float64, bool) {
	return a.cached(cacheKey{itemID, "change", hoursBack}, func() (float64, bool) {
		current, ok := a.store.Price(itemID)
		if !ok || current.InstantBuy == nil {
			return 0, false
		}
		past, ok := a.store.PriceAt(itemID, hoursBack)
		if !ok || past.InstantBuy == nil || *past.InstantBuy == 0 {
			return 0, false
		}
		return (float64(*current.InstantBuy) - float64(*past.InstantBuy)) / float64(*past.InstantBuy) * 100, true
	})
}

// Volatility returns the population stddev of the instant-buy history as a
// percentage of its mean. Requires a minimum sample count.
func (a *Analytics) Volatility(itemID int) (float64, bool) {
	return a.cached(cacheKey{itemID, "volatility", 0}, func() (float64, bool) {
		highs := buySeries(a.store.History(itemID))
		if len(highs) < a.params.MinVolatilitySamples {
			return 0, false
		}
		m := mean(highs)
		if m == 0 {
			return 0, false
		}
		return stddevPop(highs) / m * 100, true
	})
}

// SMA returns the simple moving average of the last n instant-buy prices.
func (a *Analytics) SMA(itemID, periods int) (float64, bool) {
	highs := buySeries(a.store.History(itemID))
	return sma(highs, periods)
}

// EMA returns the exponential moving average over the last n instant-buy
// prices, seeded with their SMA.
func (a *Analytics) EMA(itemID, periods int) (float64, bool) {
	highs := buySeries(a.store.History(itemID))
	return ema(highs, periods)
}

// RSI returns the Wilder RSI of the instant-buy history at the configured
// period.
func (a *Analytics) RSI(itemID int) (float64, bool) {
	return a.cached(cacheKey{itemID, "rsi", float64(a.params.RSIPeriod)}, func() (float64, bool) {
		highs := buySeries(a.store.History(itemID))
		return wilderRSI(highs, a.params.RSIPeriod)
	})
}

// Correlation returns the Pearson correlation of two items' instant-buy
// histories over their overlapping tail.
func (a *Analytics) Correlation(itemA, itemB int) (float64, bool) {
	xs := buySeries(a.store.History(itemA))
	ys := buySeries(a.store.History(itemB))

	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < a.params.MinCorrelationPairs {
		return 0, false
	}
	return pearson(xs[len(xs)-n:], ys[len(ys)-n:])
}

// TrendDirection is one of seven ordered trend buckets.
type TrendDirection string

const (
	TrendStrongDown TrendDirection = "strong-down"
	TrendDown       TrendDirection = "down"
	TrendWeakDown   TrendDirection = "weak-down"
	TrendNeutral    TrendDirection = "neutral"
	TrendWeakUp     TrendDirection = "weak-up"
	TrendUp         TrendDirection = "up"
	TrendStrongUp   TrendDirection = "strong-up"
)

// TrendResult carries the bucket and its signed strength in [-3, 3].
type TrendResult struct {
	Direction TrendDirection
	Strength  int
}

// Trend classifies an item by comparing its current price against fast,
// medium and slow moving averages. Each average the price sits above adds a
// point; each it sits below subtracts one. Averages without enough history
// contribute nothing.
func (a *Analytics) Trend(itemID int) (TrendResult, bool) {
	point, ok := a.store.Price(itemID)
	if !ok || point.InstantBuy == nil {
		return TrendResult{}, false
	}
	highs := buySeries(a.store.History(itemID))
	if len(highs) < a.params.FastMAPeriods {
		return TrendResult{}, false
	}

	price := float64(*point.InstantBuy)
	strength := 0
	for _, periods := range []int{a.params.FastMAPeriods, a.params.MediumMAPeriods, a.params.SlowMAPeriods} {
		avg, ok := sma(highs, periods)
		if !ok {
			continue
		}
		switch {
		case price > avg:
			strength++
		case price < avg:
			strength--
		}
	}

	return TrendResult{Direction: directionFor(strength), Strength: strength}, true
}

func directionFor(strength int) TrendDirection {
	switch {
	case strength <= -3:
		return TrendStrongDown
	case strength == -2:
		return TrendDown
	case strength == -1:
		return TrendWeakDown
	case strength == 1:
		return TrendWeakUp
	case strength == 2:
		return TrendUp
	case strength >= 3:
		return TrendStrongUp
	default:
		return TrendNeutral
	}
}

func (a *Analytics) cached(key cacheKey, compute func() (float64, bool)) (float64, bool) {
	if a.params.CacheTTL <= 0 {
		return compute()
	}

	now := a.clock()
	a.mu.Lock()
	if entry, ok := a.cache[key]; ok && now.Before(entry.expires) {
		a.mu.Unlock()
		return entry.value, entry.ok
	}
	a.mu.Unlock()

	value, ok := compute()

	a.mu.Lock()
	a.cache[key] = cacheEntry{value: value, ok: ok, expires: now.Add(a.params.CacheTTL)}
	a.mu.Unlock()
	return value, ok
}
