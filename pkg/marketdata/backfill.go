// Package marketdata provides the offline backfill client: it replays
// a historical window through the same enrichment pipeline the live
// engine uses and archives the resulting series to parquet.
package marketdata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/feed"
	"github.com/rxtech-lab/argo-feed/internal/feed/engine_v1"
	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/metrics"
	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/writer"
)

// OnBackfillProgress reports replayed bar counts per symbol while a
// download runs.
type OnBackfillProgress func(symbol string, barsProcessed int)

// ClientConfig holds the configuration for the backfill client.
type ClientConfig struct {
	ProviderType  provider.ProviderType `validate:"required,oneof=polygon binance websocket-feed"`
	DataPath      string                `validate:"required"`
	PolygonApiKey string                `validate:"required_if=ProviderType polygon"`
	FeedURL       string                `validate:"required_if=ProviderType websocket-feed"`

	// Enrichment parameters; zero values take the engine defaults.
	ExchangeTimezone string
	BandPeriod       int
	BandMultiplier   float64
	EmaPeriod        int
	RetentionBars    int
}

// DownloadParams holds the parameters for one backfill request.
type DownloadParams struct {
	Symbols   []string  `validate:"required,min=1,dive,required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
}

// Client replays historical one-minute bars through fresh indicator
// state machines and archives the enriched series, one parquet file
// per resolution under DataPath. The replay applies the same warm-up,
// regular-hours filtering, and retention semantics as the live engine.
type Client struct {
	provider   provider.Provider
	config     ClientConfig
	clock      *types.MarketClock
	log        *logger.Logger
	validate   *validator.Validate
	onProgress OnBackfillProgress
}

// NewClient creates a backfill client with the given configuration.
// onProgress may be nil.
func NewClient(config ClientConfig, onProgress OnBackfillProgress) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	applyEnrichmentDefaults(&config)

	clock, err := types.NewMarketClock(config.ExchangeTimezone)
	if err != nil {
		return nil, err
	}

	var providerConfig any

	switch config.ProviderType {
	case provider.ProviderPolygon:
		providerConfig = config.PolygonApiKey
	case provider.ProviderWebsocketFeed:
		providerConfig = config.FeedURL
	case provider.ProviderBinance:
		providerConfig = nil
	}

	marketProvider, err := provider.NewProvider(config.ProviderType, providerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", config.ProviderType, err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return nil, err
	}

	return &Client{
		provider:   marketProvider,
		config:     config,
		clock:      clock,
		log:        log,
		validate:   validate,
		onProgress: onProgress,
	}, nil
}

func applyEnrichmentDefaults(config *ClientConfig) {
	if config.ExchangeTimezone == "" {
		config.ExchangeTimezone = feed.DefaultExchangeTimezone
	}

	if config.BandPeriod == 0 {
		config.BandPeriod = feed.DefaultBandPeriod
	}

	if config.BandMultiplier == 0 {
		config.BandMultiplier = feed.DefaultBandMultiplier
	}

	if config.EmaPeriod == 0 {
		config.EmaPeriod = feed.DefaultEmaPeriod
	}

	if config.RetentionBars == 0 {
		config.RetentionBars = feed.DefaultRetentionBars
	}
}

// Download replays the requested window for every symbol and archives
// the enriched one-minute and five-minute series. The context cancels
// the replay between bars.
func (c *Client) Download(ctx context.Context, params DownloadParams) error {
	if err := c.validate.Struct(params); err != nil {
		return fmt.Errorf("invalid download parameters: %w", err)
	}

	if _, err := os.Stat(c.config.DataPath); os.IsNotExist(err) {
		if err := os.MkdirAll(c.config.DataPath, 0755); err != nil {
			return fmt.Errorf("failed to create data path: %w", err)
		}
	}

	archives, err := c.setupWriters()
	if err != nil {
		return err
	}

	defer c.closeWriters(archives)

	for _, symbol := range params.Symbols {
		if err := c.downloadSymbol(ctx, symbol, params, archives); err != nil {
			return err
		}
	}

	return nil
}

// downloadSymbol runs one symbol's replay through a fresh pipeline and
// archives the flushed series.
func (c *Client) downloadSymbol(ctx context.Context, symbol string, params DownloadParams, archives map[types.Resolution]writer.EnrichedBarWriter) error {
	pipeline, err := engine_v1.NewSymbolPipeline(symbol, engine_v1.PipelineParams{
		Clock:          c.clock,
		Sink:           sink.NewMemorySink(),
		Logger:         c.log,
		Metrics:        metrics.NewFeedMetrics(),
		BandPeriod:     c.config.BandPeriod,
		BandMultiplier: c.config.BandMultiplier,
		EmaPeriod:      c.config.EmaPeriod,
		RetentionBars:  c.config.RetentionBars,
		TradingDate:    c.clock.SessionDate(params.EndDate),
		Observer:       nil,
	})
	if err != nil {
		return err
	}

	processed := 0

	for bar, err := range c.provider.HistoricalBars(ctx, symbol, params.StartDate, params.EndDate) {
		if err != nil {
			return fmt.Errorf("download failed for %s: %w", symbol, err)
		}

		if err := pipeline.OnHistoricalBar(bar); err != nil {
			return err
		}

		processed++

		if c.onProgress != nil {
			c.onProgress(symbol, processed)
		}
	}

	pipeline.Flush(ctx)

	for _, resolution := range []types.Resolution{types.ResolutionOneMinute, types.ResolutionFiveMinute} {
		archive, ok := archives[resolution]
		if !ok {
			continue
		}

		for _, bar := range pipeline.Series(resolution) {
			if err := archive.Write(bar); err != nil {
				return fmt.Errorf("failed to archive %s series for %s: %w", resolution, symbol, err)
			}
		}
	}

	oneMinute, fiveMinute := pipeline.SeriesLengths()
	c.log.Info("symbol backfill archived",
		zap.String("symbol", symbol),
		zap.Int("bars_replayed", processed),
		zap.Int("one_minute_bars", oneMinute),
		zap.Int("five_minute_bars", fiveMinute),
	)

	return nil
}

func (c *Client) setupWriters() (map[types.Resolution]writer.EnrichedBarWriter, error) {
	archives := make(map[types.Resolution]writer.EnrichedBarWriter)

	for _, resolution := range []types.Resolution{types.ResolutionOneMinute, types.ResolutionFiveMinute} {
		archive := writer.NewDuckDBWriter(c.config.DataPath, resolution)
		if err := archive.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize %s archive in %s: %w", resolution, c.config.DataPath, err)
		}

		archives[resolution] = archive
	}

	return archives, nil
}

func (c *Client) closeWriters(archives map[types.Resolution]writer.EnrichedBarWriter) {
	for _, archive := range archives {
		if _, err := archive.Finalize(); err != nil {
			c.log.Warn("failed to finalize archive", zap.Error(err))
		}

		if err := archive.Close(); err != nil {
			c.log.Warn("failed to close archive", zap.Error(err))
		}
	}
}
