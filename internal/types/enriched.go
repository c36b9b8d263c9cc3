package types

import (
	"math"

	"github.com/moznion/go-optional"
)

// Resolution identifies a bar series resolution.
type Resolution string

const (
	ResolutionOneMinute  Resolution = "1m"
	ResolutionFiveMinute Resolution = "5m"
)

// Direction is the trend direction reported by the volatility band:
// +1 while the band trails below price (long), -1 while it trails above (short).
type Direction int

const (
	DirectionLong  Direction = 1
	DirectionShort Direction = -1
)

// EnrichedBar is a closed bar together with its indicator values, in the wire
// shape written to the series store and published on bar-close channels.
// Time is encoded as exchange-local wall-clock seconds (see MarketClock).
// Ema and TrendDirection are null until the respective state machine has
// consumed enough bars; TrendValue and the bands are 0 during warm-up.
type EnrichedBar struct {
	Symbol     string                     `json:"symbol,omitempty"`
	Time       int64                      `json:"time"`
	Open       float64                    `json:"open"`
	High       float64                    `json:"high"`
	Low        float64                    `json:"low"`
	Close      float64                    `json:"close"`
	Volume     float64                    `json:"volume"`
	Ema        optional.Option[float64]   `json:"ema"`
	TrendValue float64                    `json:"trend_value"`
	TrendDir   optional.Option[Direction] `json:"trend_dir"`
	TrendUpper float64                    `json:"trend_upper"`
	TrendLower float64                    `json:"trend_lower"`
}

// PreviewBar is the non-authoritative in-progress bar maintained from
// intra-minute ticks. It carries no volume and is never stored.
type PreviewBar struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}

// Round4 rounds a price or indicator value to 4 decimal places, the precision
// used throughout the published series.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// MinuteBucket floors an encoded timestamp to its minute boundary.
func MinuteBucket(ts int64) int64 {
	return ts - ts%60
}
