package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

type FeedConfigTestSuite struct {
	suite.Suite
}

func TestFeedConfigSuite(t *testing.T) {
	suite.Run(t, new(FeedConfigTestSuite))
}

func (suite *FeedConfigTestSuite) TestApplyDefaults() {
	config := FeedEngineConfig{Symbols: []string{"AAPL"}}
	config.ApplyDefaults()

	suite.Equal("America/New_York", config.ExchangeTimezone)
	suite.Equal(10, config.BandPeriod)
	suite.InDelta(2.0, config.BandMultiplier, 0.001)
	suite.Equal(21, config.EmaPeriod)
	suite.Equal(500, config.RetentionBars)
	suite.Equal(24*time.Hour, config.BackfillWindow)
	suite.Equal(15*time.Second, config.BackfillFlushDelay)
}

func (suite *FeedConfigTestSuite) TestApplyDefaultsKeepsExplicitValues() {
	config := FeedEngineConfig{
		Symbols:       []string{"AAPL"},
		BandPeriod:    7,
		EmaPeriod:     9,
		RetentionBars: 100,
	}
	config.ApplyDefaults()

	suite.Equal(7, config.BandPeriod)
	suite.Equal(9, config.EmaPeriod)
	suite.Equal(100, config.RetentionBars)
}

func (suite *FeedConfigTestSuite) TestValidateRequiresSymbols() {
	config := FeedEngineConfig{}
	config.ApplyDefaults()

	err := config.Validate()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *FeedConfigTestSuite) TestValidateRejectsUnknownTimezone() {
	config := FeedEngineConfig{
		Symbols:          []string{"AAPL"},
		ExchangeTimezone: "Mars/Olympus_Mons",
	}
	config.ApplyDefaults()

	err := config.Validate()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimezone))
}

func (suite *FeedConfigTestSuite) TestValidAfterDefaults() {
	config := FeedEngineConfig{Symbols: []string{"AAPL", "MSFT"}}
	config.ApplyDefaults()

	suite.NoError(config.Validate())
}

func (suite *FeedConfigTestSuite) TestGetConfigSchema() {
	schemaJSON, err := GetConfigSchema()
	suite.Require().NoError(err)
	suite.Contains(schemaJSON, "symbols")
	suite.Contains(schemaJSON, "band_period")
	suite.Contains(schemaJSON, "retention_bars")
}
