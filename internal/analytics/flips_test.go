package analytics

import (
	"testing"
	"time"

	"github.com/Craigmuzza/PVPStore-sub000/internal/geapi"
)

func TestFindBestFlips(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{
		{ID: 1, Name: "Steady item", Limit: 100},
		{ID: 2, Name: "Thin item", Limit: 10},
		{ID: 3, Name: "Better item", Limit: 100},
	})
	m.push(t, map[int][2]int64{
		1: {1100, 1000}, // margin 89, 8.9%
		2: {2000, 1990}, // tax 20 eats the spread
		3: {550, 500},   // margin 45, 9.0%
	}, time.Minute)

	an := testAnalytics(m.store)
	flips := an.FindBestFlips(FlipCriteria{MinMarginPct: 1, MinMarginGp: 1})

	if len(flips) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(flips))
	}
	if flips[0].Item.ID != 3 {
		t.Fatalf("higher-scoring item should rank first, got %+v", flips[0].Item)
	}
	if flips[1].Item.ID != 1 {
		t.Fatalf("expected item 1 second, got %+v", flips[1].Item)
	}
	for _, flip := range flips {
		if flip.Score <= 0 {
			t.Fatalf("scores should be positive: %+v", flip)
		}
	}
}

func TestFindBestFlipsBuyLimitFilter(t *testing.T) {
	m := newMarket(t, []geapi.ItemMapping{{ID: 1, Name: "Thin item", Limit: 5}})
	m.push(t, map[int][2]int64{1: {1100, 1000}}, time.Minute)

	flips := testAnalytics(m.store).FindBestFlips(FlipCriteria{MinBuyLimit: 10})
	if len(flips) != 0 {
		t.Fatalf("buy limit filter should exclude the item, got %v", flips)
	}
}

func TestFindBestFlipsLimitsResults(t *testing.T) {
	items := make([]geapi.ItemMapping, 0, 15)
	prices := make(map[int][2]int64, 15)
	for i := 1; i <= 15; i++ {
		items = append(items, geapi.ItemMapping{ID: i, Name: "Item", Limit: 100})
		prices[i] = [2]int64{1100 + int64(i), 1000}
	}

	m := newMarket(t, items)
	m.push(t, prices, time.Minute)

	flips := testAnalytics(m.store).FindBestFlips(FlipCriteria{MinMarginGp: 1})
	if len(flips) != 10 {
		t.Fatalf("default result cap should be 10, got %d", len(flips))
	}
}
