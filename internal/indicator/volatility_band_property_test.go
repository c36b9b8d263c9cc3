package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/mocks"
)

// Invariant checks over long synthetic price paths: trending, neutral
// and high-volatility regimes generated with fixed seeds.
type VolatilityBandPropertyTestSuite struct {
	suite.Suite
}

func TestVolatilityBandPropertySuite(t *testing.T) {
	suite.Run(t, new(VolatilityBandPropertyTestSuite))
}

func (suite *VolatilityBandPropertyTestSuite) paths() map[string][]types.Bar {
	gen := mocks.NewDataGenerator(7)

	base := mocks.DefaultConfig()
	base.StartTime = time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC)
	base.Count = 2000

	bullish := base
	bullish.Trend = 0.5

	bearish := base
	bearish.Trend = -0.5

	choppy := base
	choppy.Volatility = 0.01

	return map[string][]types.Bar{
		"neutral": gen.Generate(base),
		"bullish": gen.Generate(bullish),
		"bearish": gen.Generate(bearish),
		"choppy":  gen.Generate(choppy),
	}
}

func (suite *VolatilityBandPropertyTestSuite) TestBandInvariantsOnSyntheticPaths() {
	const period = 10

	for name, bars := range suite.paths() {
		band, err := NewVolatilityBand(period, 2.0)
		suite.Require().NoError(err)

		prevDir := types.Direction(0)
		prevHasDir := false
		prevUpper := 0.0
		prevLower := 0.0

		for i, bar := range bars {
			value := band.Update(bar.Open, bar.High, bar.Low, bar.Close)

			if i < period-1 {
				suite.Require().True(value.Direction.IsNone(),
					"%s bar %d should still be warming up", name, i)

				continue
			}

			dir, err := value.Direction.Take()
			suite.Require().NoError(err, "%s bar %d should be past warm-up", name, i)

			suite.Require().LessOrEqual(value.Lower, value.Upper,
				"%s bar %d lower above upper", name, i)

			switch dir {
			case types.DirectionLong:
				suite.Require().Equal(value.Lower, value.Value,
					"%s bar %d long value must track the lower band", name, i)
			case types.DirectionShort:
				suite.Require().Equal(value.Upper, value.Value,
					"%s bar %d short value must track the upper band", name, i)
			}

			// While a trend persists the active band only tightens.
			if prevHasDir && dir == prevDir {
				if dir == types.DirectionLong {
					suite.Require().GreaterOrEqual(value.Lower, prevLower,
						"%s bar %d lower band loosened during a long trend", name, i)
				} else {
					suite.Require().LessOrEqual(value.Upper, prevUpper,
						"%s bar %d upper band loosened during a short trend", name, i)
				}
			}

			prevDir = dir
			prevHasDir = true
			prevUpper = value.Upper
			prevLower = value.Lower
		}
	}
}

func (suite *VolatilityBandPropertyTestSuite) TestSustainedTrendsSettleDirection() {
	gen := mocks.NewDataGenerator(11)

	config := mocks.DefaultConfig()
	config.Count = 500
	config.Volatility = 0.0005
	config.Trend = 5.0

	band, err := NewVolatilityBand(10, 2.0)
	suite.Require().NoError(err)

	var lastDir types.Direction

	for _, bar := range gen.Generate(config) {
		value := band.Update(bar.Open, bar.High, bar.Low, bar.Close)
		if dir, err := value.Direction.Take(); err == nil {
			lastDir = dir
		}
	}

	suite.Equal(types.DirectionLong, lastDir)
}
