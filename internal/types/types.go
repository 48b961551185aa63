package types

import "time"

// Bar is one daily OHLCV bar as returned by a price provider.
type Bar struct {
	Date                        time.Time
	Open, High, Low, Close, Vol float64
}

// PriceRecord is one ticker's latest known daily state: the current price
// plus the prior completed trading day's bar. Immutable once built; a new
// fetch for the same ticker produces a new record, it never mutates this one.
type PriceRecord struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
	PriorClose   float64 `json:"prior_close"`
	PriorHigh    float64 `json:"prior_high"`
	PriorLow     float64 `json:"prior_low"`
	PriorVolume  float64 `json:"prior_volume"`
	AsOf         string  `json:"as_of"` // trading-day key, "2006-01-02"
	Source       string  `json:"source"`
}

// StrategyParameters controls one evaluation pass. Immutable for the
// duration of a scan or a tracker tick.
type StrategyParameters struct {
	BreakoutFactor float64 `yaml:"breakout_factor"` // fraction of prior range, (0,1]
	VolatilityMin  float64 `yaml:"volatility_min"`  // percent
	VolatilityMax  float64 `yaml:"volatility_max"`  // percent
	MinVolume      float64 `yaml:"min_volume"`
	MinPrice       float64 `yaml:"min_price"`
	ProximityPct   float64 `yaml:"proximity_pct"` // waiting band below entry, percent

	Weights ScoreWeights `yaml:"weights"`
}

// ScoreWeights is the composite-score weight table. It is an exposed,
// tunable parameter set, not a hidden constant; the default table adds
// up to 100 points.
type ScoreWeights struct {
	Volatility float64 `yaml:"volatility"`
	Volume     float64 `yaml:"volume"`
	PriceBand  float64 `yaml:"price_band"`
	Proximity  float64 `yaml:"proximity"`
	RiskReward float64 `yaml:"risk_reward"`
}

// DefaultScoreWeights returns the canonical weight table.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Volatility: 30,
		Volume:     20,
		PriceBand:  15,
		Proximity:  20,
		RiskReward: 15,
	}
}

// Classification of a ticker after analysis.
type Classification string

const (
	Breakout Classification = "breakout"
	Waiting  Classification = "waiting"
	Rejected Classification = "rejected"
)

// Reason codes attached to rejected classifications. Malformed upstream
// data is expected, not exceptional, so these are values rather than errors.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInconsistentPrices Reason = "inconsistent_prices"
	ReasonNonPositivePrice   Reason = "non_positive_price"
	ReasonNegativeVolume     Reason = "negative_volume"
	ReasonZeroRange          Reason = "zero_range"
	ReasonVolatilityOutside  Reason = "volatility_outside_band"
	ReasonVolumeTooLow       Reason = "volume_too_low"
	ReasonPriceTooLow        Reason = "price_too_low"
	ReasonTooFarFromEntry    Reason = "too_far_from_entry"
)

// Analysis is the full derived output for one PriceRecord. It is a pure
// function of (PriceRecord, StrategyParameters) and carries no hidden state.
type Analysis struct {
	Ticker            string         `json:"ticker"`
	EntryPrice        float64        `json:"entry_price"`
	StopLoss3         float64        `json:"stop_loss_3"`
	StopLoss5         float64        `json:"stop_loss_5"`
	StopLoss8         float64        `json:"stop_loss_8"`
	Target1           float64        `json:"target_1"`
	Target2           float64        `json:"target_2"`
	Target3           float64        `json:"target_3"`
	VolatilityPercent float64        `json:"volatility_percent"`
	Score             float64        `json:"score"` // 0..100
	Classification    Classification `json:"classification"`
	Reason            Reason         `json:"reason,omitempty"`
	GapToEntry        float64        `json:"gap_to_entry"` // percent below entry, 0 at/above
	CurrentPrice      float64        `json:"current_price"`
}

// WatchCandidate is one tracked ticker. Owned exclusively by the watchlist
// tracker; everything handed out to readers is a copy. HasBreakout is
// monotonic: once true it never reverts.
type WatchCandidate struct {
	Ticker        string    `json:"ticker"`
	EntryPrice    float64   `json:"entry_price"`
	StopLoss      float64   `json:"stop_loss"`
	Target1       float64   `json:"target_1"`
	Target2       float64   `json:"target_2"`
	Score         float64   `json:"score"`
	CurrentPrice  float64   `json:"current_price"`
	HasBreakout   bool      `json:"has_breakout"`
	BreakoutTime  time.Time `json:"breakout_time,omitempty"`
	BreakoutPrice float64   `json:"breakout_price,omitempty"`
	LastCheck     time.Time `json:"last_check,omitempty"`
}

// ScanResult aggregates one full-universe scan.
type ScanResult struct {
	Breakouts    []Analysis    `json:"breakouts"`
	Waiting      []Analysis    `json:"waiting"`
	TotalScanned int           `json:"total_scanned"`
	ErrorCount   int           `json:"error_count"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// BreakoutAlert is the payload of a breakout:detected event.
type BreakoutAlert struct {
	Ticker       string    `json:"ticker"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	GainPercent  float64   `json:"gain_percent"`
	Time         time.Time `json:"time"`
}

// AcquisitionProgress is the payload of an acquisition:progress event.
type AcquisitionProgress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Ticker    string `json:"ticker"`
}
