// Package analyzer implements the Larry Williams volatility-breakout rule:
// the entry price is the prior close plus a fraction of the prior day's
// high-low range, and a ticker "breaks out" the moment its current price
// reaches that level.
//
// Everything here is pure computation. Identical inputs always yield an
// identical Analysis; malformed upstream data produces a rejected
// classification with a reason code, never an error.
package analyzer

import (
	"breakout-scanner/internal/types"
)

// priceEpsilon floors stops and targets so derived levels stay positive
// even for penny-priced records.
const priceEpsilon = 0.01

// defaultBreakoutFactor is used when the configured factor is not in (0,1].
const defaultBreakoutFactor = 0.5

// defaultProximityPct is the waiting band below entry when none is set.
const defaultProximityPct = 3.0

// normalize clamps parameters into their documented domains.
func normalize(p types.StrategyParameters) types.StrategyParameters {
	if p.BreakoutFactor <= 0 {
		p.BreakoutFactor = defaultBreakoutFactor
	}
	if p.BreakoutFactor > 1 {
		p.BreakoutFactor = 1
	}
	if p.ProximityPct <= 0 {
		p.ProximityPct = defaultProximityPct
	}
	if p.Weights == (types.ScoreWeights{}) {
		p.Weights = types.DefaultScoreWeights()
	}
	return p
}

func floorPrice(v float64) float64 {
	if v < priceEpsilon {
		return priceEpsilon
	}
	return v
}

// Evaluate analyzes one price record against the strategy parameters.
func Evaluate(rec types.PriceRecord, params types.StrategyParameters) types.Analysis {
	params = normalize(params)

	a := types.Analysis{
		Ticker:       rec.Ticker,
		CurrentPrice: rec.CurrentPrice,
	}

	// Structural validation. Inconsistent bars are expected from flaky
	// upstreams and reject rather than error.
	switch {
	case rec.PriorHigh < rec.PriorLow:
		return rejected(a, types.ReasonInconsistentPrices)
	case rec.CurrentPrice <= 0 || rec.PriorClose <= 0 || rec.PriorHigh <= 0 || rec.PriorLow <= 0:
		return rejected(a, types.ReasonNonPositivePrice)
	case rec.PriorVolume < 0:
		return rejected(a, types.ReasonNegativeVolume)
	}

	dailyRange := rec.PriorHigh - rec.PriorLow
	a.VolatilityPercent = dailyRange / rec.PriorClose * 100

	a.EntryPrice = rec.PriorClose + dailyRange*params.BreakoutFactor
	a.StopLoss3 = floorPrice(a.EntryPrice * 0.97)
	a.StopLoss5 = floorPrice(a.EntryPrice * 0.95)
	a.StopLoss8 = floorPrice(a.EntryPrice * 0.92)

	risk := a.EntryPrice - a.StopLoss5
	a.Target1 = floorPrice(a.EntryPrice + 1.5*risk)
	a.Target2 = floorPrice(a.EntryPrice + 2.0*risk)
	a.Target3 = floorPrice(a.EntryPrice + 3.0*risk)

	if rec.CurrentPrice < a.EntryPrice {
		a.GapToEntry = (a.EntryPrice - rec.CurrentPrice) / a.EntryPrice * 100
	}

	// Filter conditions: all must hold or the record is rejected.
	switch {
	case dailyRange <= 0:
		return rejected(a, types.ReasonZeroRange)
	case rec.PriorClose > rec.PriorHigh || rec.PriorClose < rec.PriorLow:
		return rejected(a, types.ReasonInconsistentPrices)
	case a.VolatilityPercent < params.VolatilityMin || a.VolatilityPercent > params.VolatilityMax:
		return rejected(a, types.ReasonVolatilityOutside)
	case rec.PriorVolume < params.MinVolume:
		return rejected(a, types.ReasonVolumeTooLow)
	case rec.CurrentPrice < params.MinPrice:
		return rejected(a, types.ReasonPriceTooLow)
	}

	switch {
	case rec.CurrentPrice >= a.EntryPrice:
		a.Classification = types.Breakout
	case a.GapToEntry <= params.ProximityPct:
		a.Classification = types.Waiting
	default:
		return rejected(a, types.ReasonTooFarFromEntry)
	}

	a.Score = score(rec, a, params.Weights)
	return a
}

func rejected(a types.Analysis, reason types.Reason) types.Analysis {
	a.Classification = types.Rejected
	a.Reason = reason
	a.Score = 0
	return a
}
