// Package feed defines the enriched bar feed engine interface, its
// configuration, and the lifecycle callbacks exposed to hosts.
package feed

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-feed/pkg/schema"
)

// Lifecycle callback types for the feed engine.
// Callbacks with an error return can abort execution by returning one.

// OnEngineStartCallback is called once the engine is running, after all
// symbol pipelines have been created.
type OnEngineStartCallback func(symbols []string) error

// OnEngineStopCallback is called when the engine stops (always called via defer).
type OnEngineStopCallback func(err error)

// OnBackfillFlushedCallback is called when a symbol transitions from
// backfill to live mode, with the stored series lengths at that moment.
type OnBackfillFlushedCallback func(symbol string, oneMinuteBars int, fiveMinuteBars int)

// OnBarClosedCallback is called for every enriched bar published to the sink.
type OnBarClosedCallback func(symbol string, resolution types.Resolution, bar types.EnrichedBar)

// OnErrorCallback is called when a non-fatal error occurs.
type OnErrorCallback func(err error)

// FeedEngineCallbacks holds the lifecycle callbacks for the feed engine.
// All fields are pointers; nil means no callback will be invoked.
type FeedEngineCallbacks struct {
	// OnEngineStart is called once the engine is running.
	OnEngineStart *OnEngineStartCallback

	// OnEngineStop is called when the engine stops.
	OnEngineStop *OnEngineStopCallback

	// OnBackfillFlushed is called when a symbol goes live.
	OnBackfillFlushed *OnBackfillFlushedCallback

	// OnBarClosed is called for every published enriched bar.
	OnBarClosed *OnBarClosedCallback

	// OnError is called when a non-fatal error occurs.
	OnError *OnErrorCallback
}

// Defaults applied by FeedEngineConfig.ApplyDefaults.
const (
	DefaultExchangeTimezone   = "America/New_York"
	DefaultBandPeriod         = 10
	DefaultBandMultiplier     = 2.0
	DefaultEmaPeriod          = 21
	DefaultRetentionBars      = 500
	DefaultBackfillWindow     = 24 * time.Hour
	DefaultBackfillFlushDelay = 15 * time.Second
)

// FeedEngineConfig holds the configuration for the feed engine.
type FeedEngineConfig struct {
	// Symbols is the instrument universe, one pipeline per entry.
	Symbols []string `json:"symbols" yaml:"symbols" jsonschema:"description=Symbols to ingest and enrich" validate:"required,min=1,dive,required"`

	// ExchangeTimezone is the IANA timezone of the exchange calendar.
	ExchangeTimezone string `json:"exchange_timezone" yaml:"exchange_timezone" jsonschema:"description=IANA exchange timezone,default=America/New_York"`

	// BandPeriod is the smoothing period of the volatility band.
	BandPeriod int `json:"band_period" yaml:"band_period" jsonschema:"description=Volatility band smoothing period,default=10" validate:"omitempty,min=1"`

	// BandMultiplier widens the volatility band around the bar midpoint.
	BandMultiplier float64 `json:"band_multiplier" yaml:"band_multiplier" jsonschema:"description=Volatility band width multiplier,default=2" validate:"omitempty,gt=0"`

	// EmaPeriod is the exponential average period.
	EmaPeriod int `json:"ema_period" yaml:"ema_period" jsonschema:"description=Exponential average period,default=21" validate:"omitempty,min=1"`

	// RetentionBars bounds the stored series length per symbol per resolution.
	RetentionBars int `json:"retention_bars" yaml:"retention_bars" jsonschema:"description=Maximum stored bars per series,default=500" validate:"omitempty,min=1"`

	// BackfillWindow is how far back the historical replay reaches.
	BackfillWindow time.Duration `json:"backfill_window" yaml:"backfill_window" jsonschema:"description=Historical replay lookback,default=24h"`

	// BackfillFlushDelay is the fallback delay after which a symbol is
	// flushed to live mode when the provider gives no end-of-replay signal.
	BackfillFlushDelay time.Duration `json:"backfill_flush_delay" yaml:"backfill_flush_delay" jsonschema:"description=Fallback backfill flush delay,default=15s"`

	// EnablePreview turns on the tick-driven preview bar channel.
	EnablePreview bool `json:"enable_preview" yaml:"enable_preview" jsonschema:"description=Publish in-progress preview bars from ticks,default=false"`

	// MinEngineVersion rejects engines older than this semver, empty to skip.
	MinEngineVersion string `json:"min_engine_version" yaml:"min_engine_version" jsonschema:"description=Required minimum engine version"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *FeedEngineConfig) ApplyDefaults() {
	if c.ExchangeTimezone == "" {
		c.ExchangeTimezone = DefaultExchangeTimezone
	}

	if c.BandPeriod == 0 {
		c.BandPeriod = DefaultBandPeriod
	}

	if c.BandMultiplier == 0 {
		c.BandMultiplier = DefaultBandMultiplier
	}

	if c.EmaPeriod == 0 {
		c.EmaPeriod = DefaultEmaPeriod
	}

	if c.RetentionBars == 0 {
		c.RetentionBars = DefaultRetentionBars
	}

	if c.BackfillWindow == 0 {
		c.BackfillWindow = DefaultBackfillWindow
	}

	if c.BackfillFlushDelay == 0 {
		c.BackfillFlushDelay = DefaultBackfillFlushDelay
	}
}

// Validate checks the configured values after defaults are applied.
func (c *FeedEngineConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid feed engine config", err)
	}

	if _, err := types.NewMarketClock(c.ExchangeTimezone); err != nil {
		return err
	}

	return nil
}

// GetConfigSchema returns the JSON schema for FeedEngineConfig.
func GetConfigSchema() (string, error) {
	return schema.ToJSONSchema(&FeedEngineConfig{}) //nolint:exhaustruct
}

// FeedEngine ingests historical and live one-minute bars for a set of
// symbols, enriches them with indicator values, aggregates the
// five-minute resolution, and publishes both series to a sink.
type FeedEngine interface {
	// Initialize sets up the engine with the given configuration.
	Initialize(config FeedEngineConfig) error

	// SetProvider configures the market data source.
	SetProvider(provider provider.Provider) error

	// SetSink configures the downstream series store and pub-sub sink.
	SetSink(seriesSink sink.SeriesSink) error

	// SetArchiveDir enables parquet archiving of enriched bars under the
	// given directory. Must be called before Run.
	SetArchiveDir(path string) error

	// Run performs the historical backfill and then processes live bars
	// and ticks until the context is cancelled.
	Run(ctx context.Context, callbacks FeedEngineCallbacks) error

	// CompleteBackfill flushes one symbol from backfill to live mode
	// ahead of the fallback timer. A second call is a no-op.
	CompleteBackfill(ctx context.Context, symbol string) error

	// GetConfigSchema returns the JSON schema for the engine configuration.
	GetConfigSchema() (string, error)
}
