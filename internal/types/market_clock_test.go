package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

type MarketClockTestSuite struct {
	suite.Suite
	clock *MarketClock
}

func (suite *MarketClockTestSuite) SetupTest() {
	clock, err := NewMarketClock("America/New_York")
	suite.Require().NoError(err)
	suite.clock = clock
}

func TestMarketClockSuite(t *testing.T) {
	suite.Run(t, new(MarketClockTestSuite))
}

func (suite *MarketClockTestSuite) TestNewMarketClockInvalidTimezone() {
	clock, err := NewMarketClock("Mars/Olympus_Mons")
	suite.Assert().Nil(clock)
	suite.Assert().Error(err)
	suite.Assert().True(errors.HasCode(err, errors.ErrCodeInvalidTimezone))
}

func (suite *MarketClockTestSuite) TestLocalEpochSummerOffset() {
	// 2024-07-01 10:00:00 EDT is UTC-4.
	t := time.Date(2024, 7, 1, 14, 0, 0, 0, time.UTC)
	suite.Assert().Equal(t.Unix()-4*3600, suite.clock.LocalEpoch(t))
}

func (suite *MarketClockTestSuite) TestLocalEpochWinterOffset() {
	// 2024-12-02 10:00:00 EST is UTC-5.
	t := time.Date(2024, 12, 2, 15, 0, 0, 0, time.UTC)
	suite.Assert().Equal(t.Unix()-5*3600, suite.clock.LocalEpoch(t))
}

func (suite *MarketClockTestSuite) TestLocalEpochReadsAsLocalWallTime() {
	t := time.Date(2024, 7, 1, 14, 30, 0, 0, time.UTC)
	shifted := time.Unix(suite.clock.LocalEpoch(t), 0).UTC()
	suite.Assert().Equal(10, shifted.Hour())
	suite.Assert().Equal(30, shifted.Minute())
}

func (suite *MarketClockTestSuite) TestSessionDateCrossesMidnightUTC() {
	// 2024-07-01 22:00:00 local is 2024-07-02 02:00:00 UTC.
	t := time.Date(2024, 7, 2, 2, 0, 0, 0, time.UTC)
	suite.Assert().Equal("2024-07-01", suite.clock.SessionDate(t))
}

func (suite *MarketClockTestSuite) TestRegularHoursBoundaries() {
	local := func(hour, min, sec int) time.Time {
		return time.Date(2024, 7, 1, hour, min, sec, 0, suite.clock.Location())
	}

	suite.Assert().True(suite.clock.InRegularHours(local(9, 30, 0)))
	suite.Assert().False(suite.clock.InRegularHours(local(9, 29, 59)))
	suite.Assert().True(suite.clock.InRegularHours(local(15, 59, 59)))
	suite.Assert().False(suite.clock.InRegularHours(local(16, 0, 0)))
}

func (suite *MarketClockTestSuite) TestEpochInRegularHours() {
	localEpoch := func(hour, min, sec int) int64 {
		t := time.Date(2024, 7, 1, hour, min, sec, 0, suite.clock.Location())
		return suite.clock.LocalEpoch(t)
	}

	suite.Assert().True(EpochInRegularHours(localEpoch(9, 30, 0)))
	suite.Assert().False(EpochInRegularHours(localEpoch(9, 29, 59)))
	suite.Assert().True(EpochInRegularHours(localEpoch(15, 59, 59)))
	suite.Assert().False(EpochInRegularHours(localEpoch(16, 0, 0)))
}

func (suite *MarketClockTestSuite) TestBeforeOpenAndAfterClose() {
	local := func(hour, min, sec int) time.Time {
		return time.Date(2024, 7, 1, hour, min, sec, 0, suite.clock.Location())
	}

	suite.Assert().True(suite.clock.BeforeOpen(local(9, 29, 59)))
	suite.Assert().False(suite.clock.BeforeOpen(local(9, 30, 0)))
	suite.Assert().False(suite.clock.AfterClose(local(15, 59, 59)))
	suite.Assert().True(suite.clock.AfterClose(local(16, 0, 0)))
}
