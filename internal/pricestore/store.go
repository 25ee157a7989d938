package pricestore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
)

// Item is immutable catalog reference data.
type Item struct {
	ID       int
	Name     string
	BuyLimit int
	HighAlch int
	Value    int
	Members  bool
}

// PricePoint is one observation of an item's instant buy/sell prices. Either
// side may be nil when the API has no recent trade on it. BuyTime/SellTime are
// the trade timestamps reported by the API; ObservedAt is when we sampled.
type PricePoint struct {
	InstantBuy  *int64
	InstantSell *int64
	BuyTime     time.Time
	SellTime    time.Time
	ObservedAt  time.Time
}

// Options tune store behaviour.
type Options struct {
	HistoryCap   int
	MinScanPrice int64
	Clock        func() time.Time
}

type catalog struct {
	items  map[int]Item
	byName map[string]int
}

// Store owns the item catalog, the freshest price per item, and a bounded
// FIFO history per item. It is the single writer of all three; readers get
// copies or immutable snapshots.
type Store struct {
	opts     Options
	logger   zerolog.Logger
	catalogF geapi.CatalogFetcher
	latestF  geapi.LatestFetcher

	mu      sync.RWMutex
	catalog *catalog
	latest  map[int]PricePoint
	history map[int][]PricePoint
}

// NewStore constructs a price store backed by the given fetchers.
func NewStore(catalogF geapi.CatalogFetcher, latestF geapi.LatestFetcher, opts Options, logger zerolog.Logger) *Store {
	if opts.HistoryCap < 2 {
		opts.HistoryCap = 2
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		opts:     opts,
		logger:   logging.Component(logger, "pricestore"),
		catalogF: catalogF,
		latestF:  latestF,
		latest:   make(map[int]PricePoint),
		history:  make(map[int][]PricePoint),
	}
}

// RefreshCatalog fetches the full item catalog and swaps it in wholesale.
// On failure the previous catalog is retained untouched.
func (s *Store) RefreshCatalog(ctx context.Context) error {
	mappings, err := s.catalogF.FetchMapping(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	if len(mappings) == 0 {
		return fmt.Errorf("refresh catalog: empty mapping response")
	}

	next := &catalog{
		items:  make(map[int]Item, len(mappings)),
		byName: make(map[string]int, len(mappings)),
	}
	for _, m := range mappings {
		item := Item{
			ID:       m.ID,
			Name:     m.Name,
			BuyLimit: m.Limit,
			HighAlch: m.HighAlch,
			Value:    m.Value,
			Members:  m.Members,
		}
		next.items[item.ID] = item
		next.byName[strings.ToLower(item.Name)] = item.ID
	}

	s.mu.Lock()
	s.catalog = next
	s.mu.Unlock()

	s.logger.Info().Int("items", len(next.items)).Msg("catalog refreshed")
	return nil
}

// RefreshPrices fetches the latest snapshot and folds it into latest prices
// and history. Items with no price on either side are skipped. A side is only
// overwritten by a time-newer observation, so a null never clobbers a more
// recent value.
func (s *Store) RefreshPrices(ctx context.Context) error {
	snapshot, err := s.latestF.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}

	now := s.opts.Clock().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for id, raw := range snapshot {
		if raw.High == nil && raw.Low == nil {
			continue
		}

		point := s.latest[id]
		if raw.High != nil {
			t := epochSeconds(raw.HighTime)
			if point.InstantBuy == nil || !t.Before(point.BuyTime) {
				v := *raw.High
				point.InstantBuy = &v
				point.BuyTime = t
			}
		}
		if raw.Low != nil {
			t := epochSeconds(raw.LowTime)
			if point.InstantSell == nil || !t.Before(point.SellTime) {
				v := *raw.Low
				point.InstantSell = &v
				point.SellTime = t
			}
		}
		point.ObservedAt = now

		s.latest[id] = point
		s.appendHistoryLocked(id, point)
		updated++
	}

	s.logger.Debug().Int("updated", updated).Int("snapshot", len(snapshot)).Msg("prices refreshed")
	return nil
}

// appendHistoryLocked appends a point and enforces the FIFO cap.
func (s *Store) appendHistoryLocked(id int, point PricePoint) {
	points := append(s.history[id], point)
	if len(points) > s.opts.HistoryCap {
		points = points[len(points)-s.opts.HistoryCap:]
	}
	s.history[id] = points
}

// Item looks up catalog data by id.
func (s *Store) Item(id int) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return Item{}, false
	}
	item, ok := s.catalog.items[id]
	return item, ok
}

// Price returns the freshest known price for an item.
func (s *Store) Price(id int) (PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	point, ok := s.latest[id]
	return point, ok
}

// History returns a copy of the retained price history for an item, oldest
// first.
func (s *Store) History(id int) []PricePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := s.history[id]
	if len(points) == 0 {
		return nil
	}
	out := make([]PricePoint, len(points))
	copy(out, points)
	return out
}

// PriceAt returns the history entry closest to now minus hoursBack. Fewer
// than two retained points is "unknown", not an error.
func (s *Store) PriceAt(id int, hoursBack float64) (PricePoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.history[id]
	if len(points) < 2 {
		return PricePoint{}, false
	}

	target := s.opts.Clock().UTC().Add(-time.Duration(hoursBack * float64(time.Hour)))
	best := points[0]
	bestDiff := absDuration(points[0].ObservedAt.Sub(target))
	for _, p := range points[1:] {
		diff := absDuration(p.ObservedAt.Sub(target))
		if diff < bestDiff {
			best = p
			bestDiff = diff
		}
	}
	return best, true
}

// FindItem resolves a query to a single item: case-insensitive exact match
// first, otherwise the best substring match.
func (s *Store) FindItem(query string) (Item, bool) {
	matches := s.SearchItems(query, 1)
	if len(matches) == 0 {
		return Item{}, false
	}
	return matches[0], true
}

// SearchItems returns up to limit items matching the query. Exact matches
// rank first; substring matches are ordered by name length so shorter names
// (closer to an exact hit) win ties.
func (s *Store) SearchItems(query string, limit int) []Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || limit <= 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil
	}

	var results []Item
	if id, ok := s.catalog.byName[query]; ok {
		results = append(results, s.catalog.items[id])
	}

	var partial []Item
	for _, item := range s.catalog.items {
		lower := strings.ToLower(item.Name)
		if lower == query {
			continue
		}
		if strings.Contains(lower, query) {
			partial = append(partial, item)
		}
	}
	sort.Slice(partial, func(i, j int) bool {
		if len(partial[i].Name) != len(partial[j].Name) {
			return len(partial[i].Name) < len(partial[j].Name)
		}
		return partial[i].Name < partial[j].Name
	})

	results = append(results, partial...)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// PricedItemIDs returns the ids of all items with a current price.
func (s *Store) PricedItemIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.latest))
	for id := range s.latest {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// LiquidItemIDs returns items with both sides priced and an instant-buy price
// at or above the minimum scan price. This is the universe scanned when a
// server has no watchlist.
func (s *Store) LiquidItemIDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.latest))
	for id, point := range s.latest {
		if point.InstantBuy == nil || point.InstantSell == nil {
			continue
		}
		if *point.InstantBuy < s.opts.MinScanPrice {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func epochSeconds(v *int64) time.Time {
	if v == nil || *v == 0 {
		return time.Time{}
	}
	return time.Unix(*v, 0).UTC()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
