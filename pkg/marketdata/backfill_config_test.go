package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
)

type BackfillConfigTestSuite struct {
	suite.Suite
}

func TestBackfillConfigSuite(t *testing.T) {
	suite.Run(t, new(BackfillConfigTestSuite))
}

func (s *BackfillConfigTestSuite) TestParsePolygonConfigValid() {
	jsonConfig := `{
		"symbols": ["SPY", "QQQ"],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z",
		"apiKey": "test-key"
	}`

	config, err := ParsePolygonConfig(jsonConfig)
	s.Require().NoError(err)
	s.Equal([]string{"SPY", "QQQ"}, config.Symbols)
	s.Equal("test-key", config.ApiKey)
}

func (s *BackfillConfigTestSuite) TestParsePolygonConfigMissingApiKey() {
	jsonConfig := `{
		"symbols": ["SPY"],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z"
	}`

	_, err := ParsePolygonConfig(jsonConfig)
	s.Require().Error(err)
	s.Contains(err.Error(), "ApiKey")
}

func (s *BackfillConfigTestSuite) TestParseBinanceConfigValid() {
	jsonConfig := `{
		"symbols": ["BTCUSDT"],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z"
	}`

	config, err := ParseBinanceConfig(jsonConfig)
	s.Require().NoError(err)
	s.Equal([]string{"BTCUSDT"}, config.Symbols)
}

func (s *BackfillConfigTestSuite) TestParseWebsocketFeedConfigRequiresURL() {
	jsonConfig := `{
		"symbols": ["SPY"],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z"
	}`

	_, err := ParseWebsocketFeedConfig(jsonConfig)
	s.Require().Error(err)
	s.Contains(err.Error(), "FeedURL")
}

func (s *BackfillConfigTestSuite) TestInvalidDateFormatRejected() {
	jsonConfig := `{
		"symbols": ["BTCUSDT"],
		"startDate": "2024-07-01",
		"endDate": "2024-07-02T00:00:00Z"
	}`

	_, err := ParseBinanceConfig(jsonConfig)
	s.Require().Error(err)
	s.Contains(err.Error(), "startDate")
}

func (s *BackfillConfigTestSuite) TestEndBeforeStartRejected() {
	jsonConfig := `{
		"symbols": ["BTCUSDT"],
		"startDate": "2024-07-02T00:00:00Z",
		"endDate": "2024-07-01T00:00:00Z"
	}`

	_, err := ParseBinanceConfig(jsonConfig)
	s.Require().Error(err)
	s.Contains(err.Error(), "must be after")
}

func (s *BackfillConfigTestSuite) TestEmptySymbolsRejected() {
	jsonConfig := `{
		"symbols": [],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z"
	}`

	_, err := ParseBinanceConfig(jsonConfig)
	s.Require().Error(err)
}

func (s *BackfillConfigTestSuite) TestToDownloadParams() {
	config := BaseBackfillConfig{
		Symbols:   []string{"SPY"},
		StartDate: "2024-07-01T00:00:00Z",
		EndDate:   "2024-07-02T00:00:00Z",
	}

	params, err := config.ToDownloadParams()
	s.Require().NoError(err)
	s.Equal([]string{"SPY"}, params.Symbols)
	s.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), params.StartDate)
	s.Equal(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), params.EndDate)
}

func (s *BackfillConfigTestSuite) TestToClientConfig() {
	polygonConfig := PolygonBackfillConfig{
		BaseBackfillConfig: BaseBackfillConfig{
			Symbols:   []string{"SPY"},
			StartDate: "2024-07-01T00:00:00Z",
			EndDate:   "2024-07-02T00:00:00Z",
		},
		ApiKey: "test-key",
	}

	clientConfig := polygonConfig.ToClientConfig("/tmp/data")
	s.Equal(provider.ProviderPolygon, clientConfig.ProviderType)
	s.Equal("/tmp/data", clientConfig.DataPath)
	s.Equal("test-key", clientConfig.PolygonApiKey)

	feedConfig := WebsocketFeedBackfillConfig{
		BaseBackfillConfig: BaseBackfillConfig{
			Symbols:   []string{"SPY"},
			StartDate: "2024-07-01T00:00:00Z",
			EndDate:   "2024-07-02T00:00:00Z",
		},
		FeedURL: "ws://localhost:9000/feed",
	}

	feedClientConfig := feedConfig.ToClientConfig("/tmp/data")
	s.Equal(provider.ProviderWebsocketFeed, feedClientConfig.ProviderType)
	s.Equal("ws://localhost:9000/feed", feedClientConfig.FeedURL)
}
