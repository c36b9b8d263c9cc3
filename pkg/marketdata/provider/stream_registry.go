package provider

import (
	"github.com/rxtech-lab/argo-feed/pkg/errors"
	"github.com/rxtech-lab/argo-feed/pkg/schema"
)

// GetStreamConfigSchema returns the JSON schema for a provider's streaming configuration.
func GetStreamConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(PolygonStreamConfig{})
	case ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(BinanceStreamConfig{})
	case ProviderWebsocketFeed:
		//nolint:exhaustruct // Empty struct is intentional for schema generation
		return schema.ToJSONSchema(WebsocketFeedStreamConfig{})
	default:
		return "", errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerName)
	}
}

// GetStreamKeychainFields returns the keychain field names for a provider's streaming configuration.
func GetStreamKeychainFields(providerName string) ([]string, error) {
	switch ProviderType(providerName) {
	case ProviderPolygon:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(PolygonStreamConfig{}), nil
	case ProviderBinance:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(BinanceStreamConfig{}), nil
	case ProviderWebsocketFeed:
		//nolint:exhaustruct // Empty struct is intentional for field introspection
		return schema.KeychainFields(WebsocketFeedStreamConfig{}), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerName)
	}
}

// ParseStreamConfig parses a JSON configuration string for the given streaming provider.
func ParseStreamConfig(providerName string, jsonConfig string) (any, error) {
	switch ProviderType(providerName) {
	case ProviderPolygon:
		return ParsePolygonStreamConfig(jsonConfig)
	case ProviderBinance:
		return ParseBinanceStreamConfig(jsonConfig)
	case ProviderWebsocketFeed:
		return ParseWebsocketFeedStreamConfig(jsonConfig)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerName)
	}
}
