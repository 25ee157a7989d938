package analytics

import (
	"fmt"
	"math"
)

// Severity grades a detected signal by how far it exceeds its base threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityExtreme  Severity = "extreme"
)

// maxConfidence caps every confidence score; detection heuristics never claim
// full certainty.
const maxConfidence = 95

// severityFor grades a magnitude against multiples of its base threshold.
func severityFor(magnitude, base float64) Severity {
	if base <= 0 {
		return SeverityLow
	}
	ratio := magnitude / base
	switch {
	case ratio >= 4:
		return SeverityExtreme
	case ratio >= 2.5:
		return SeveritySevere
	case ratio >= 1.5:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// confidence blends the magnitude ratio with a count of corroborating
// signals, capped below certainty.
func confidence(magnitude, base float64, corroborating int) float64 {
	if base <= 0 {
		return 0
	}
	score := 50 + (magnitude/base-1)*15 + float64(corroborating)*5
	return clamp(score, 0, maxConfidence)
}

// PumpConfig sets the pump heuristic thresholds.
type PumpConfig struct {
	MinIncreasePct   float64
	SustainedPeriods int
}

// PumpResult reports a pump evaluation.
type PumpResult struct {
	Detected    bool
	ChangePct   float64
	Consecutive int
	Severity    Severity
	Confidence  float64
}

// DetectPump flags a sustained rapid price increase: the 1-hour change must
// reach the configured minimum and the most recent samples must be
// consecutively rising.
func (a *Analytics) DetectPump(itemID int, cfg PumpConfig) (PumpResult, bool) {
	change, ok := a.PriceChange(itemID, 1)
	if !ok {
		return PumpResult{}, false
	}

	highs := buySeries(a.store.History(itemID))
	rises := consecutiveRises(highs)

	result := PumpResult{ChangePct: change, Consecutive: rises}
	if change < cfg.MinIncreasePct || rises < cfg.SustainedPeriods {
		return result, true
	}

	corroborating := 1 // sustained direction held
	if rsi, ok := a.RSI(itemID); ok && rsi >= 70 {
		corroborating++
	}
	if trend, ok := a.Trend(itemID); ok && trend.Strength >= 2 {
		corroborating++
	}

	result.Detected = true
	result.Severity = severityFor(change, cfg.MinIncreasePct)
	result.Confidence = confidence(change, cfg.MinIncreasePct, corroborating)
	return result, true
}

// DumpConfig sets the dump heuristic threshold.
type DumpConfig struct {
	MinDropPct float64
}

// DumpResult reports a dump evaluation. DropPct is positive for a fall.
type DumpResult struct {
	Detected   bool
	DropPct    float64
	Severity   Severity
	Confidence float64
}

// DetectDump flags a rapid price decrease over the last 30 minutes.
func (a *Analytics) DetectDump(itemID int, cfg DumpConfig) (DumpResult, bool) {
	change, ok := a.PriceChange(itemID, 0.5)
	if !ok {
		return DumpResult{}, false
	}

	drop := -change
	result := DumpResult{DropPct: drop}
	if drop < cfg.MinDropPct {
		return result, true
	}

	highs := buySeries(a.store.History(itemID))
	corroborating := 0
	if consecutiveFalls(highs) >= 2 {
		corroborating++
	}
	if rsi, ok := a.RSI(itemID); ok && rsi <= 30 {
		corroborating++
	}
	if trend, ok := a.Trend(itemID); ok && trend.Strength <= -2 {
		corroborating++
	}

	result.Detected = true
	result.Severity = severityFor(drop, cfg.MinDropPct)
	result.Confidence = confidence(drop, cfg.MinDropPct, corroborating)
	return result, true
}

// UnusualResult carries the composite activity score and the reasons behind
// it. Reasons are emitted in a fixed order so identical inputs reproduce the
// identical list.
type UnusualResult struct {
	Score   float64
	Reasons []string
}

// UnusualActivity blends five independently capped components into a score
// in [0, 100]: 1-hour change magnitude, volatility, RSI extremity, trend
// strength, and deviation from the slow moving average.
func (a *Analytics) UnusualActivity(itemID int) (UnusualResult, bool) {
	var result UnusualResult
	computed := false

	if change, ok := a.PriceChange(itemID, 1); ok {
		computed = true
		pts := math.Min(math.Abs(change)*2, 30)
		result.Score += pts
		if pts >= 10 {
			result.Reasons = append(result.Reasons, fmt.Sprintf("1h price change of %+.1f%%", change))
		}
	}

	if vol, ok := a.Volatility(itemID); ok {
		computed = true
		pts := math.Min(vol, 20)
		result.Score += pts
		if pts >= 5 {
			result.Reasons = append(result.Reasons, fmt.Sprintf("volatility at %.1f%%", vol))
		}
	}

	if rsi, ok := a.RSI(itemID); ok {
		computed = true
		switch {
		case rsi >= 70:
			pts := math.Min(rsi-70, 20)
			result.Score += pts
			result.Reasons = append(result.Reasons, fmt.Sprintf("RSI overbought at %.1f", rsi))
		case rsi <= 30:
			pts := math.Min(30-rsi, 20)
			result.Score += pts
			result.Reasons = append(result.Reasons, fmt.Sprintf("RSI oversold at %.1f", rsi))
		}
	}

	if trend, ok := a.Trend(itemID); ok {
		computed = true
		pts := math.Min(math.Abs(float64(trend.Strength))*5, 15)
		result.Score += pts
		if trend.Strength >= 2 || trend.Strength <= -2 {
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s trend", trend.Direction))
		}
	}

	if avg, ok := a.SMA(itemID, a.params.SlowMAPeriods); ok && avg > 0 {
		if point, okPrice := a.store.Price(itemID); okPrice && point.InstantBuy != nil {
			computed = true
			dev := math.Abs(float64(*point.InstantBuy)-avg) / avg * 100
			pts := math.Min(dev, 15)
			result.Score += pts
			if pts >= 5 {
				result.Reasons = append(result.Reasons, fmt.Sprintf("price %.1f%% away from %d-period average", dev, a.params.SlowMAPeriods))
			}
		}
	}

	if !computed {
		return UnusualResult{}, false
	}

	result.Score = clamp(result.Score, 0, 100)
	return result, true
}
