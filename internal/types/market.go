package types

import "time"

// Bar is a single fixed-interval OHLCV candle as delivered by a market data
// provider. Time is the bar's open time in true UTC; conversion to the
// exchange-local wall-clock encoding happens at enrichment time.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// QuoteTick is a best bid/ask update from a market data provider.
type QuoteTick struct {
	Symbol   string
	Time     time.Time
	BidPrice float64
	AskPrice float64
}

// Mid returns the bid/ask midpoint used as the tick price.
func (t QuoteTick) Mid() float64 {
	return (t.BidPrice + t.AskPrice) / 2
}
