package analytics

import (
	"math"

	"github.com/Craigmuzza/PVPStore-sub000/internal/pricestore"
)

// buySeries extracts the instant-buy price series from history, oldest first,
// skipping points with no buy side.
func buySeries(points []pricestore.PricePoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if p.InstantBuy == nil {
			continue
		}
		out = append(out, float64(*p.InstantBuy))
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddevPop(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// sma averages the last n values.
func sma(values []float64, periods int) (float64, bool) {
	if periods <= 0 || len(values) < periods {
		return 0, false
	}
	return mean(values[len(values)-periods:]), true
}

// ema computes an exponential moving average seeded with the SMA of the first
// n values.
func ema(values []float64, periods int) (float64, bool) {
	if periods <= 0 || len(values) < periods {
		return 0, false
	}
	seed, _ := sma(values[:periods], periods)
	k := 2.0 / (float64(periods) + 1)
	avg := seed
	for _, v := range values[periods:] {
		avg = v*k + avg*(1-k)
	}
	return avg, true
}

// wilderRSI computes the Relative Strength Index over price deltas. A series
// with no losses yields exactly 100; a flat series yields 50.
func wilderRSI(values []float64, period int) (float64, bool) {
	if period < 2 || len(values) < period+1 {
		return 0, false
	}

	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain := 0.0
		loss := 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, true
		}
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Zero variance on either side is "unknown".
func pearson(xs, ys []float64) (float64, bool) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return 0, false
	}

	mx := mean(xs)
	my := mean(ys)

	var cov, vx, vy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}

	r := cov / math.Sqrt(vx*vy)
	// guard against float drift past the mathematical bounds
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return r, true
}

// consecutiveRises counts how many samples at the tail of the series each
// exceed their predecessor.
func consecutiveRises(values []float64) int {
	count := 0
	for i := len(values) - 1; i > 0; i-- {
		if values[i] > values[i-1] {
			count++
		} else {
			break
		}
	}
	return count
}

// consecutiveFalls is the mirror of consecutiveRises.
func consecutiveFalls(values []float64) int {
	count := 0
	for i := len(values) - 1; i > 0; i-- {
		if values[i] < values[i-1] {
			count++
		} else {
			break
		}
	}
	return count
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
