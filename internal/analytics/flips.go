package analytics

import (
	"math"
	"sort"

	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// FlipCriteria filter candidate flips before scoring.
type FlipCriteria struct {
	MinMarginPct float64
	MinMarginGp  int64
	MinBuyLimit  int
	MaxResults   int
}

// FlipCandidate is a scored flipping opportunity.
type FlipCandidate struct {
	Item       pricestore.Item
	Margin     MarginResult
	Volatility float64
	Change1h   float64
	Score      float64
}

const (
	flipMarginWeight = 2.0
	flipROIWeight    = 4.0
	flipDepthWeight  = 5.0

	flipVolatilityPenaltyAt = 10.0
	flipVolatilityPenalty   = 0.7
	flipCrashPenaltyAt      = -5.0
	flipCrashPenalty        = 0.6
)

// FindBestFlips filters all priced items by the criteria, scores survivors by
// a weighted blend of margin percent, ROI per hour and buy-limit depth,
// applies volatility and recent-crash penalties, and returns the top results
// by score.
func (a *Analytics) FindBestFlips(criteria FlipCriteria) []FlipCandidate {
	maxResults := criteria.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	var candidates []FlipCandidate
	for _, id := range a.store.PricedItemIDs() {
		item, ok := a.store.Item(id)
		if !ok {
			continue
		}
		if criteria.MinBuyLimit > 0 && item.BuyLimit < criteria.MinBuyLimit {
			continue
		}

		margin, ok := a.Margin(id)
		if !ok {
			continue
		}
		if margin.Margin < criteria.MinMarginGp || margin.MarginPct < criteria.MinMarginPct {
			continue
		}

		candidate := FlipCandidate{Item: item, Margin: margin}

		score := margin.MarginPct*flipMarginWeight +
			margin.ROIPerHour*flipROIWeight +
			math.Log10(float64(item.BuyLimit)+1)*flipDepthWeight

		if vol, ok := a.Volatility(id); ok {
			candidate.Volatility = vol
			if vol > flipVolatilityPenaltyAt {
				score *= flipVolatilityPenalty
			}
		}
		if change, ok := a.PriceChange(id, 1); ok {
			candidate.Change1h = change
			if change < flipCrashPenaltyAt {
				score *= flipCrashPenalty
			}
		}

		candidate.Score = score
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Item.ID < candidates[j].Item.ID
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}
