package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// BandValue is the output of a single VolatilityBand update. While the
// indicator is warming up, Direction is None and the remaining fields
// are zero.
type BandValue struct {
	Value     float64
	Direction optional.Option[types.Direction]
	Upper     float64
	Lower     float64
}

// VolatilityBand is a streaming trend indicator built on a smoothed
// true-range envelope around the bar midpoint. It holds a long or short
// direction until the close crosses the active band, and ratchets the
// bands so they only tighten while a trend persists. All reported
// prices are rounded to 4 decimal places.
type VolatilityBand struct {
	period     int
	multiplier float64

	count         int
	trSum         float64
	smoothedRange float64
	prevClose     float64
	hasPrevClose  bool

	seeded    bool
	prevUpper float64
	prevLower float64
	direction types.Direction
}

// NewVolatilityBand creates a VolatilityBand with the given smoothing
// period and band multiplier.
func NewVolatilityBand(period int, multiplier float64) (*VolatilityBand, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if multiplier <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidMultiplier, "multiplier must be positive, got %f", multiplier)
	}

	//nolint:exhaustruct
	return &VolatilityBand{
		period:     period,
		multiplier: multiplier,
	}, nil
}

// Update consumes the next bar and returns the band state after that
// bar. Bars must be pushed in chronological order.
func (v *VolatilityBand) Update(_, high, low, close float64) BandValue {
	smoothed, ok := v.updateSmoothedRange(high, low)

	// Band ratcheting below compares against the previous bar's close,
	// so prevClose advances only once the whole update is done.
	defer func() {
		v.prevClose = close
		v.hasPrevClose = true
	}()

	if !ok {
		//nolint:exhaustruct
		return BandValue{Direction: optional.None[types.Direction]()}
	}

	mid := (high + low) / 2
	basicUpper := mid + v.multiplier*smoothed
	basicLower := mid - v.multiplier*smoothed

	// The seed bar takes the basic bands directly and still runs the
	// flip check below: a close already beyond the seeded band starts
	// the trend on that side.
	finalUpper := basicUpper
	finalLower := basicLower

	if v.seeded {
		finalUpper = v.prevUpper
		if basicUpper < v.prevUpper || v.prevClose > v.prevUpper {
			finalUpper = basicUpper
		}

		finalLower = v.prevLower
		if basicLower > v.prevLower || v.prevClose < v.prevLower {
			finalLower = basicLower
		}
	} else {
		v.seeded = true
		v.direction = types.DirectionLong
	}

	direction := v.direction
	if direction == types.DirectionLong && close < finalLower {
		direction = types.DirectionShort
	} else if direction == types.DirectionShort && close > finalUpper {
		direction = types.DirectionLong
	}

	v.prevUpper = finalUpper
	v.prevLower = finalLower
	v.direction = direction

	return v.report()
}

// updateSmoothedRange advances the Wilder-smoothed true range and
// reports whether the warm-up phase has completed.
func (v *VolatilityBand) updateSmoothedRange(high, low float64) (float64, bool) {
	tr := high - low
	if v.hasPrevClose {
		tr = math.Max(tr, math.Abs(high-v.prevClose))
		tr = math.Max(tr, math.Abs(low-v.prevClose))
	}

	v.count++

	if v.count < v.period {
		v.trSum += tr
		return 0, false
	}

	if v.count == v.period {
		v.trSum += tr
		v.smoothedRange = v.trSum / float64(v.period)

		return v.smoothedRange, true
	}

	v.smoothedRange = (v.smoothedRange*float64(v.period-1) + tr) / float64(v.period)

	return v.smoothedRange, true
}

func (v *VolatilityBand) report() BandValue {
	value := v.prevUpper
	if v.direction == types.DirectionLong {
		value = v.prevLower
	}

	return BandValue{
		Value:     types.Round4(value),
		Direction: optional.Some(v.direction),
		Upper:     types.Round4(v.prevUpper),
		Lower:     types.Round4(v.prevLower),
	}
}
