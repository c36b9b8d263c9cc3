package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// ExponentialAverage is a streaming exponential moving average. The
// first value is seeded with the simple average of the first period
// closes; until then Update returns None.
type ExponentialAverage struct {
	period int
	alpha  float64

	count   int
	sum     float64
	current float64
	seeded  bool
}

// NewExponentialAverage creates an ExponentialAverage with the given
// period. The smoothing factor is 2/(period+1).
func NewExponentialAverage(period int) (*ExponentialAverage, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	//nolint:exhaustruct
	return &ExponentialAverage{
		period: period,
		alpha:  2.0 / float64(period+1),
	}, nil
}

// Update consumes the next close price and returns the average after
// that sample, rounded to 4 decimal places, or None while warming up.
func (e *ExponentialAverage) Update(close float64) optional.Option[float64] {
	if !e.seeded {
		e.count++
		e.sum += close

		if e.count < e.period {
			return optional.None[float64]()
		}

		e.seeded = true
		e.current = e.sum / float64(e.period)

		return optional.Some(types.Round4(e.current))
	}

	e.current = close*e.alpha + e.current*(1-e.alpha)

	return optional.Some(types.Round4(e.current))
}

// Value returns the current average, or None while warming up.
func (e *ExponentialAverage) Value() optional.Option[float64] {
	if !e.seeded {
		return optional.None[float64]()
	}

	return optional.Some(types.Round4(e.current))
}
