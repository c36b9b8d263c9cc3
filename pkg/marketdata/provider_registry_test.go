package marketdata

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ProviderRegistryTestSuite struct {
	suite.Suite
}

func TestProviderRegistrySuite(t *testing.T) {
	suite.Run(t, new(ProviderRegistryTestSuite))
}

func (s *ProviderRegistryTestSuite) TestSupportedProvidersListsAll() {
	providers := GetSupportedProviders()
	s.Len(providers, 3)
	s.Contains(providers, "polygon")
	s.Contains(providers, "binance")
	s.Contains(providers, "websocket-feed")
}

func (s *ProviderRegistryTestSuite) TestProviderInfo() {
	info, err := GetProviderInfo("polygon")
	s.Require().NoError(err)
	s.Equal("Polygon.io", info.DisplayName)
	s.True(info.RequiresAuth)

	info, err = GetProviderInfo("binance")
	s.Require().NoError(err)
	s.False(info.RequiresAuth)

	_, err = GetProviderInfo("bloomberg")
	s.Require().Error(err)
	s.Contains(err.Error(), "unsupported provider")
}

func (s *ProviderRegistryTestSuite) TestBackfillConfigSchema() {
	polygonSchema, err := GetBackfillConfigSchema("polygon")
	s.Require().NoError(err)
	s.Contains(polygonSchema, "symbols")
	s.Contains(polygonSchema, "startDate")
	s.Contains(polygonSchema, "apiKey")

	feedSchema, err := GetBackfillConfigSchema("websocket-feed")
	s.Require().NoError(err)
	s.Contains(feedSchema, "feedUrl")

	_, err = GetBackfillConfigSchema("bloomberg")
	s.Require().Error(err)
}

func (s *ProviderRegistryTestSuite) TestBackfillKeychainFields() {
	fields, err := GetBackfillKeychainFields("polygon")
	s.Require().NoError(err)
	s.Equal([]string{"apiKey"}, fields)

	fields, err = GetBackfillKeychainFields("binance")
	s.Require().NoError(err)
	s.Empty(fields)
}

func (s *ProviderRegistryTestSuite) TestParseBackfillConfigDispatch() {
	parsed, err := ParseBackfillConfig("polygon", `{
		"symbols": ["SPY"],
		"startDate": "2024-07-01T00:00:00Z",
		"endDate": "2024-07-02T00:00:00Z",
		"apiKey": "test-key"
	}`)
	s.Require().NoError(err)

	polygonConfig, ok := parsed.(*PolygonBackfillConfig)
	s.Require().True(ok)
	s.Equal("test-key", polygonConfig.ApiKey)

	_, err = ParseBackfillConfig("bloomberg", `{}`)
	s.Require().Error(err)
}
