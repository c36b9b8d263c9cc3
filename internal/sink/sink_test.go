package sink

import (
	"context"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/internal/types"
)

type SinkTestSuite struct {
	suite.Suite
	sink *MemorySink
}

func (suite *SinkTestSuite) SetupTest() {
	suite.sink = NewMemorySink()
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkTestSuite))
}

func (suite *SinkTestSuite) TestKeyLayout() {
	suite.Assert().Equal("bars:1m:AAPL", SeriesKey("AAPL", types.ResolutionOneMinute))
	suite.Assert().Equal("bars:5m:AAPL", SeriesKey("AAPL", types.ResolutionFiveMinute))
	suite.Assert().Equal("kline:1m:AAPL", BarChannel("AAPL", types.ResolutionOneMinute))
	suite.Assert().Equal("kline:5m:AAPL", BarChannel("AAPL", types.ResolutionFiveMinute))
	suite.Assert().Equal("bars:1m:tick:AAPL", PreviewChannel("AAPL"))
}

func (suite *SinkTestSuite) TestWriteSeriesReplacesSnapshot() {
	ctx := context.Background()

	bar := func(t int64, close float64) types.EnrichedBar {
		return types.EnrichedBar{
			Symbol:   "AAPL",
			Time:     t,
			Close:    close,
			Ema:      optional.None[float64](),
			TrendDir: optional.None[types.Direction](),
		}
	}

	suite.Require().NoError(suite.sink.WriteSeries(ctx, "AAPL", types.ResolutionOneMinute, []types.EnrichedBar{bar(60, 100)}))
	suite.Require().NoError(suite.sink.WriteSeries(ctx, "AAPL", types.ResolutionOneMinute, []types.EnrichedBar{bar(60, 100), bar(120, 101)}))

	series := suite.sink.Series("AAPL", types.ResolutionOneMinute)
	suite.Require().Len(series, 2)
	suite.Assert().InDelta(101.0, series[1].Close, 1e-9)

	// Resolutions are stored under separate keys.
	suite.Assert().Empty(suite.sink.Series("AAPL", types.ResolutionFiveMinute))
}

func (suite *SinkTestSuite) TestPublishOrderPreserved() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		bar := types.EnrichedBar{
			Symbol:   "AAPL",
			Time:     int64(60 * (i + 1)),
			Ema:      optional.None[float64](),
			TrendDir: optional.None[types.Direction](),
		}
		suite.Require().NoError(suite.sink.PublishBar(ctx, "AAPL", types.ResolutionOneMinute, bar))
	}

	published := suite.sink.Published("AAPL", types.ResolutionOneMinute)
	suite.Require().Len(published, 3)
	suite.Assert().Equal(int64(60), published[0].Time)
	suite.Assert().Equal(int64(180), published[2].Time)
}

func (suite *SinkTestSuite) TestPublishPreview() {
	ctx := context.Background()

	preview := types.PreviewBar{
		Symbol: "AAPL",
		Time:   60,
		Open:   100,
		High:   101,
		Low:    99,
		Close:  100.5,
	}
	suite.Require().NoError(suite.sink.PublishPreview(ctx, "AAPL", preview))

	previews := suite.sink.Previews("AAPL")
	suite.Require().Len(previews, 1)
	suite.Assert().InDelta(100.5, previews[0].Close, 1e-9)
}
