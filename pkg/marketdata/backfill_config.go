package marketdata

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
)

// BaseBackfillConfig contains common fields for all backfill
// configurations. The source resolution is always one minute; the
// five-minute series is derived by aggregation during the replay.
type BaseBackfillConfig struct {
	Symbols   []string `json:"symbols" jsonschema:"title=Symbols,description=The trading symbols to backfill (e.g. SPY or BTCUSDT),required" validate:"required,min=1,dive,required"`
	StartDate string   `json:"startDate" jsonschema:"title=Start Date,description=Start of the backfill window,format=date-time,required" validate:"required"`
	EndDate   string   `json:"endDate" jsonschema:"title=End Date,description=End of the backfill window (exclusive),format=date-time,required" validate:"required"`
}

// PolygonBackfillConfig contains configuration for backfilling from Polygon.io.
type PolygonBackfillConfig struct {
	BaseBackfillConfig

	ApiKey string `json:"apiKey" jsonschema:"title=API Key,description=Polygon.io API key for authentication,required" keychain:"true" validate:"required"`
}

// BinanceBackfillConfig contains configuration for backfilling from Binance.
// Binance public market data API does not require authentication.
type BinanceBackfillConfig struct {
	BaseBackfillConfig
}

// WebsocketFeedBackfillConfig contains configuration for backfilling
// from a websocket bar feed.
type WebsocketFeedBackfillConfig struct {
	BaseBackfillConfig

	FeedURL string `json:"feedUrl" jsonschema:"title=Feed URL,description=Websocket feed endpoint URL,required" validate:"required,url"`
}

// Validate validates the BaseBackfillConfig fields.
func (c *BaseBackfillConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	startDate, err := time.Parse(time.RFC3339, c.StartDate)
	if err != nil {
		return fmt.Errorf("invalid startDate format, expected RFC3339: %w", err)
	}

	endDate, err := time.Parse(time.RFC3339, c.EndDate)
	if err != nil {
		return fmt.Errorf("invalid endDate format, expected RFC3339: %w", err)
	}

	if !endDate.After(startDate) {
		return fmt.Errorf("endDate %s must be after startDate %s", c.EndDate, c.StartDate)
	}

	return nil
}

// Validate validates the PolygonBackfillConfig.
func (c *PolygonBackfillConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return c.BaseBackfillConfig.Validate()
}

// Validate validates the BinanceBackfillConfig.
func (c *BinanceBackfillConfig) Validate() error {
	return c.BaseBackfillConfig.Validate()
}

// Validate validates the WebsocketFeedBackfillConfig.
func (c *WebsocketFeedBackfillConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return c.BaseBackfillConfig.Validate()
}

// ToDownloadParams converts a BaseBackfillConfig to DownloadParams.
// Validate first; the date parses are assumed to succeed.
func (c *BaseBackfillConfig) ToDownloadParams() (DownloadParams, error) {
	startDate, err := time.Parse(time.RFC3339, c.StartDate)
	if err != nil {
		return DownloadParams{}, fmt.Errorf("failed to parse startDate: %w", err)
	}

	endDate, err := time.Parse(time.RFC3339, c.EndDate)
	if err != nil {
		return DownloadParams{}, fmt.Errorf("failed to parse endDate: %w", err)
	}

	return DownloadParams{
		Symbols:   c.Symbols,
		StartDate: startDate,
		EndDate:   endDate,
	}, nil
}

// ToClientConfig converts a PolygonBackfillConfig to ClientConfig.
//
//nolint:exhaustruct
func (c *PolygonBackfillConfig) ToClientConfig(dataPath string) ClientConfig {
	return ClientConfig{
		ProviderType:  provider.ProviderPolygon,
		DataPath:      dataPath,
		PolygonApiKey: c.ApiKey,
	}
}

// ToClientConfig converts a BinanceBackfillConfig to ClientConfig.
//
//nolint:exhaustruct
func (c *BinanceBackfillConfig) ToClientConfig(dataPath string) ClientConfig {
	return ClientConfig{
		ProviderType: provider.ProviderBinance,
		DataPath:     dataPath,
	}
}

// ToClientConfig converts a WebsocketFeedBackfillConfig to ClientConfig.
//
//nolint:exhaustruct
func (c *WebsocketFeedBackfillConfig) ToClientConfig(dataPath string) ClientConfig {
	return ClientConfig{
		ProviderType: provider.ProviderWebsocketFeed,
		DataPath:     dataPath,
		FeedURL:      c.FeedURL,
	}
}

// ParsePolygonConfig parses JSON into a PolygonBackfillConfig.
func ParsePolygonConfig(jsonConfig string) (*PolygonBackfillConfig, error) {
	var config PolygonBackfillConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParseBinanceConfig parses JSON into a BinanceBackfillConfig.
func ParseBinanceConfig(jsonConfig string) (*BinanceBackfillConfig, error) {
	var config BinanceBackfillConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ParseWebsocketFeedConfig parses JSON into a WebsocketFeedBackfillConfig.
func ParseWebsocketFeedConfig(jsonConfig string) (*WebsocketFeedBackfillConfig, error) {
	var config WebsocketFeedBackfillConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
