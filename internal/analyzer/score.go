package analyzer

import "breakout-scanner/internal/types"

// Composite scoring. Each factor maps to a fitness in [0,1], monotonic in
// that factor's goodness, then takes its slice of the weight table. With
// the default table (30/20/15/20/15) the result spans 0..100.
//
// Tier thresholds:
//
//	volatility   3–5%: 1.0   2–3% or 5–7%: 0.6   otherwise: 0.3
//	volume       ≥10M: 1.0   ≥5M: 0.75   ≥1M: 0.5   otherwise: 0.25
//	price band   $20–$150: 1.0   $5–$20 or $150–$500: 0.6   otherwise: 0.3
//	proximity    at/above entry: 1.0 then 0.9/0.7/0.5 at 1/2/3% gaps, 0.2 beyond
//	risk/reward  (target1−current)/(current−stop5) ≥2: 1.0  ≥1.5: 0.75  ≥1: 0.5
func score(rec types.PriceRecord, a types.Analysis, w types.ScoreWeights) float64 {
	total := w.Volatility*volatilityFit(a.VolatilityPercent) +
		w.Volume*volumeFit(rec.PriorVolume) +
		w.PriceBand*priceBandFit(rec.CurrentPrice) +
		w.Proximity*proximityFit(a.GapToEntry) +
		w.RiskReward*riskRewardFit(rec.CurrentPrice, a.StopLoss5, a.Target1)

	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

func volatilityFit(v float64) float64 {
	switch {
	case v >= 3 && v <= 5:
		return 1.0
	case (v >= 2 && v < 3) || (v > 5 && v <= 7):
		return 0.6
	default:
		return 0.3
	}
}

func volumeFit(vol float64) float64 {
	switch {
	case vol >= 10_000_000:
		return 1.0
	case vol >= 5_000_000:
		return 0.75
	case vol >= 1_000_000:
		return 0.5
	default:
		return 0.25
	}
}

func priceBandFit(price float64) float64 {
	switch {
	case price >= 20 && price <= 150:
		return 1.0
	case (price >= 5 && price < 20) || (price > 150 && price <= 500):
		return 0.6
	default:
		return 0.3
	}
}

func proximityFit(gapPct float64) float64 {
	switch {
	case gapPct <= 0:
		return 1.0
	case gapPct <= 1:
		return 0.9
	case gapPct <= 2:
		return 0.7
	case gapPct <= 3:
		return 0.5
	default:
		return 0.2
	}
}

func riskRewardFit(current, stop, target float64) float64 {
	if current <= stop {
		return 0.25
	}
	rr := (target - current) / (current - stop)
	switch {
	case rr >= 2.0:
		return 1.0
	case rr >= 1.5:
		return 0.75
	case rr >= 1.0:
		return 0.5
	default:
		return 0.25
	}
}
