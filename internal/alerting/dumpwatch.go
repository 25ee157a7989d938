package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/analytics"
	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// Tier names a dump-watch bucket, in escalating order.
type Tier string

const (
	TierDeal        Tier = "DEAL"
	TierOpportunity Tier = "OPPORTUNITY"
	TierPanic       Tier = "PANIC"
)

// DumpWatchOptions configure the tiered dump-watch profile. The tier
// percentages must be non-decreasing; DealPct doubles as the detection floor.
type DumpWatchOptions struct {
	ChannelID      string
	Cooldown       time.Duration
	DealPct        float64
	OpportunityPct float64
	PanicPct       float64
	Clock          func() time.Time
}

// DumpWatcher is the second profile of the dump evaluator: it scans the whole
// liquid universe, classifies drops into named tiers instead of generic
// severities, and keeps its own per-item cooldown map.
type DumpWatcher struct {
	opts      DumpWatchOptions
	store     *pricestore.Store
	analytics *analytics.Analytics
	logger    zerolog.Logger
	clock     func() time.Time

	mu        sync.Mutex
	cooldowns map[int]time.Time
}

// NewDumpWatcher constructs a dump watcher.
func NewDumpWatcher(store *pricestore.Store, an *analytics.Analytics, opts DumpWatchOptions, logger zerolog.Logger) *DumpWatcher {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &DumpWatcher{
		opts:      opts,
		store:     store,
		analytics: an,
		logger:    logging.Component(logger, "dump_watch"),
		clock:     clock,
		cooldowns: make(map[int]time.Time),
	}
}

// Scan evaluates every liquid item for a tiered dump. Emitted items go on
// cooldown immediately; a downstream delivery failure does not resurrect
// them.
func (w *DumpWatcher) Scan(ctx context.Context) []Payload {
	now := w.clock().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()

	var payloads []Payload
	for _, itemID := range w.store.LiquidItemIDs() {
		select {
		case <-ctx.Done():
			return payloads
		default:
		}

		if last, ok := w.cooldowns[itemID]; ok && now.Sub(last) < w.opts.Cooldown {
			continue
		}

		result, ok := w.analytics.DetectDump(itemID, analytics.DumpConfig{MinDropPct: w.opts.DealPct})
		if !ok || !result.Detected {
			continue
		}

		payload := Payload{
			Type:       PayloadDumpWatch,
			ChannelID:  w.opts.ChannelID,
			Item:       w.itemRef(itemID),
			Tier:       w.classify(result.DropPct),
			ChangePct:  -result.DropPct,
			Confidence: result.Confidence,
			ObservedAt: now,
		}
		if point, ok := w.store.Price(itemID); ok && point.InstantBuy != nil {
			payload.Price = *point.InstantBuy
		}

		w.cooldowns[itemID] = now
		payloads = append(payloads, payload)
	}

	return payloads
}

func (w *DumpWatcher) classify(dropPct float64) Tier {
	switch {
	case dropPct >= w.opts.PanicPct:
		return TierPanic
	case dropPct >= w.opts.OpportunityPct:
		return TierOpportunity
	default:
		return TierDeal
	}
}

func (w *DumpWatcher) itemRef(itemID int) ItemRef {
	ref := ItemRef{ID: itemID}
	if item, ok := w.store.Item(itemID); ok {
		ref.Name = item.Name
	}
	return ref
}
