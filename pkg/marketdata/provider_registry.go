package marketdata

import (
	"fmt"

	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-feed/pkg/schema"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[provider.ProviderType]ProviderInfo{
	provider.ProviderPolygon: {
		Name:         string(provider.ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with real-time and historical OHLCV data",
		RequiresAuth: true,
	},
	provider.ProviderBinance: {
		Name:         string(provider.ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency exchange with extensive market data for crypto trading pairs",
		RequiresAuth: false,
	},
	provider.ProviderWebsocketFeed: {
		Name:         string(provider.ProviderWebsocketFeed),
		DisplayName:  "Websocket Feed",
		Description:  "Generic websocket bar and quote feed speaking the argo-feed frame protocol",
		RequiresAuth: false,
	},
}

// GetSupportedProviders returns a list of all supported provider names.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[provider.ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, fmt.Errorf("unsupported provider: %s", providerName)
	}

	return info, nil
}

// GetBackfillConfigSchema returns the JSON schema for a provider's backfill configuration.
func GetBackfillConfigSchema(providerName string) (string, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(PolygonBackfillConfig{})
	case provider.ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(BinanceBackfillConfig{})
	case provider.ProviderWebsocketFeed:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(WebsocketFeedBackfillConfig{})
	default:
		return "", fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// GetBackfillKeychainFields returns the list of keychain field names for a provider's backfill configuration.
func GetBackfillKeychainFields(providerName string) ([]string, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(PolygonBackfillConfig{}), nil
	case provider.ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(BinanceBackfillConfig{}), nil
	case provider.ProviderWebsocketFeed:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(WebsocketFeedBackfillConfig{}), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}

// ParseBackfillConfig parses a JSON configuration string for the given provider.
// Returns the parsed config as an any which can be type-asserted to the specific config type.
func ParseBackfillConfig(providerName string, jsonConfig string) (any, error) {
	switch provider.ProviderType(providerName) {
	case provider.ProviderPolygon:
		return ParsePolygonConfig(jsonConfig)
	case provider.ProviderBinance:
		return ParseBinanceConfig(jsonConfig)
	case provider.ProviderWebsocketFeed:
		return ParseWebsocketFeedConfig(jsonConfig)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}
}
