package aggregator

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-feed/internal/types"
)

const bucketSeconds = 300

// FiveMinuteAggregator rolls one-minute bars into five-minute bars.
// Bars are grouped by 300-second bucket; when a bar for a new bucket
// arrives, the previously open bucket is sealed and returned. The
// sealed bar carries the bucket start as its timestamp.
type FiveMinuteAggregator struct {
	symbol string

	bucketKey int64
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
	hasBucket bool
}

// NewFiveMinuteAggregator creates an empty aggregator for the symbol.
func NewFiveMinuteAggregator(symbol string) *FiveMinuteAggregator {
	//nolint:exhaustruct
	return &FiveMinuteAggregator{symbol: symbol}
}

// Push folds one closed one-minute bar into the aggregator. When the
// bar opens a new bucket, the previously open bucket is sealed and
// returned; otherwise None.
func (a *FiveMinuteAggregator) Push(bar types.Bar) optional.Option[types.Bar] {
	key := bar.Time.Unix() - bar.Time.Unix()%bucketSeconds

	if !a.hasBucket {
		a.startBucket(key, bar)
		return optional.None[types.Bar]()
	}

	if key != a.bucketKey {
		sealed := a.seal()
		a.startBucket(key, bar)

		return optional.Some(sealed)
	}

	if bar.High > a.high {
		a.high = bar.High
	}

	if bar.Low < a.low {
		a.low = bar.Low
	}

	a.close = bar.Close
	a.volume += bar.Volume

	return optional.None[types.Bar]()
}

// FlushCurrent force-seals and returns the in-progress bucket, or None
// when no bucket is open. Used once, at the backfill-to-live handoff.
func (a *FiveMinuteAggregator) FlushCurrent() optional.Option[types.Bar] {
	if !a.hasBucket {
		return optional.None[types.Bar]()
	}

	sealed := a.seal()
	a.hasBucket = false

	return optional.Some(sealed)
}

func (a *FiveMinuteAggregator) startBucket(key int64, bar types.Bar) {
	a.bucketKey = key
	a.open = bar.Open
	a.high = bar.High
	a.low = bar.Low
	a.close = bar.Close
	a.volume = bar.Volume
	a.hasBucket = true
}

func (a *FiveMinuteAggregator) seal() types.Bar {
	return types.Bar{
		Symbol: a.symbol,
		Time:   time.Unix(a.bucketKey, 0).UTC(),
		Open:   a.open,
		High:   a.high,
		Low:    a.low,
		Close:  a.close,
		Volume: a.volume,
	}
}
