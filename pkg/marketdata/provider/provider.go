package provider

import (
	"context"
	"iter"
	"time"

	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderPolygon       ProviderType = "polygon"
	ProviderBinance       ProviderType = "binance"
	ProviderWebsocketFeed ProviderType = "websocket-feed"
)

type Provider interface {
	// HistoricalBars returns an iterator over closed one-minute bars for
	// the symbol in [start, end), in strictly increasing time order.
	// Iterator exhaustion is the completion signal for backfill.
	HistoricalBars(ctx context.Context, symbol string, start time.Time, end time.Time) iter.Seq2[types.Bar, error]
	// StreamBars returns an iterator that yields closed bars for the
	// symbols in realtime via WebSocket.
	// Uses Go 1.23+ iter.Seq2 pattern for streaming data.
	// The iterator yields Bar and error pairs. Cancel the context to stop streaming.
	StreamBars(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Bar, error]
	// StreamTicks returns an iterator that yields best bid/ask quotes
	// for the symbols in realtime. Cancel the context to stop streaming.
	StreamTicks(ctx context.Context, symbols []string) iter.Seq2[types.QuoteTick, error]
}

// NewProvider creates a market data provider based on the provider type.
// The config argument carries provider-specific settings: the Polygon
// API key string, or the websocket feed URL string. Binance takes no
// config.
func NewProvider(providerType ProviderType, config any) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClient()
	case ProviderPolygon:
		apiKey, ok := config.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon provider requires API key string config")
		}

		return NewPolygonClient(apiKey)
	case ProviderWebsocketFeed:
		url, ok := config.(string)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "websocket feed provider requires URL string config")
		}

		return NewWebsocketFeedClient(url)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}
}
