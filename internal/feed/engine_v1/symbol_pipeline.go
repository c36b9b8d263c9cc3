package engine_v1

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/aggregator"
	"github.com/rxtech-lab/argo-feed/internal/indicator"
	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/metrics"
	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// BarObserver receives every enriched bar the pipeline publishes.
// The engine uses it to fan bars out to the archive writer and callbacks.
type BarObserver func(symbol string, resolution types.Resolution, bar types.EnrichedBar)

// SymbolPipeline owns all mutable state for one symbol within one
// trading session: both indicator state machine pairs, the five-minute
// aggregator, the backfill buffers, and the stored series mirrors.
//
// All bar processing is serialized behind mu; the tick preview runs on
// its own lock and never touches bar state. The pipeline is never reset
// mid-session; a new session builds a new pipeline.
type SymbolPipeline struct {
	symbol    string
	clock     *types.MarketClock
	seriesOut sink.SeriesSink
	log       *logger.Logger
	metrics   *metrics.FeedMetrics
	retention int
	observer  BarObserver

	mu     sync.Mutex
	band1m *indicator.VolatilityBand
	ema1m  *indicator.ExponentialAverage
	band5m *indicator.VolatilityBand
	ema5m  *indicator.ExponentialAverage
	agg    *aggregator.FiveMinuteAggregator

	tradingDate    string
	flushed        bool
	histOneMinute  []types.EnrichedBar
	histFiveMinute []types.EnrichedBar
	pendingLive    []types.Bar
	oneMinute      []types.EnrichedBar
	fiveMinute     []types.EnrichedBar

	previewMu  sync.Mutex
	preview    types.PreviewBar
	hasPreview bool
}

// PipelineParams carries the per-symbol construction inputs shared by
// every pipeline of one engine run.
type PipelineParams struct {
	Clock          *types.MarketClock
	Sink           sink.SeriesSink
	Logger         *logger.Logger
	Metrics        *metrics.FeedMetrics
	BandPeriod     int
	BandMultiplier float64
	EmaPeriod      int
	RetentionBars  int
	TradingDate    string
	Observer       BarObserver
}

// NewSymbolPipeline builds the state bundle for one symbol. Both
// resolutions get their own indicator pair with identical parameters.
func NewSymbolPipeline(symbol string, params PipelineParams) (*SymbolPipeline, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeInvalidSymbol, "symbol is required")
	}

	band1m, err := indicator.NewVolatilityBand(params.BandPeriod, params.BandMultiplier)
	if err != nil {
		return nil, err
	}

	band5m, err := indicator.NewVolatilityBand(params.BandPeriod, params.BandMultiplier)
	if err != nil {
		return nil, err
	}

	ema1m, err := indicator.NewExponentialAverage(params.EmaPeriod)
	if err != nil {
		return nil, err
	}

	ema5m, err := indicator.NewExponentialAverage(params.EmaPeriod)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	return &SymbolPipeline{
		symbol:      symbol,
		clock:       params.Clock,
		seriesOut:   params.Sink,
		log:         params.Logger,
		metrics:     params.Metrics,
		retention:   params.RetentionBars,
		observer:    params.Observer,
		band1m:      band1m,
		ema1m:       ema1m,
		band5m:      band5m,
		ema5m:       ema5m,
		agg:         aggregator.NewFiveMinuteAggregator(symbol),
		tradingDate: params.TradingDate,
	}, nil
}

// Symbol returns the instrument this pipeline serves.
func (p *SymbolPipeline) Symbol() string {
	return p.symbol
}

// Flushed reports whether the backfill-to-live transition has happened.
func (p *SymbolPipeline) Flushed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.flushed
}

// OnHistoricalBar warms the state machines with one replayed bar.
// Every historical bar updates indicator state, including bars outside
// regular hours; the RTH filter is applied later, at flush. Bars
// arriving after the flush are rejected.
func (p *SymbolPipeline) OnHistoricalBar(bar types.Bar) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.flushed {
		p.metrics.BarsDropped.WithLabelValues(metrics.DropReasonLateBackfill).Inc()

		return errors.Newf(errors.ErrCodeLateHistoricalBar,
			"historical bar for %s at %d arrived after flush", p.symbol, bar.Time.Unix())
	}

	enriched := p.enrichOneMinute(bar)
	p.histOneMinute = append(p.histOneMinute, enriched)
	p.metrics.BarsProcessed.WithLabelValues(string(types.ResolutionOneMinute)).Inc()

	if sealed, err := p.agg.Push(bar).Take(); err == nil {
		p.histFiveMinute = append(p.histFiveMinute, p.enrichFiveMinute(sealed))
		p.metrics.BarsProcessed.WithLabelValues(string(types.ResolutionFiveMinute)).Inc()
	}

	return nil
}

// Flush performs the one-time backfill-to-live transition: seals the
// in-progress five-minute bucket, filters both buffers to regular
// trading hours, truncates to the retention bound, writes both series
// to the sink, and replays any live bars queued while backfilling.
// A second invocation is a no-op; the return reports whether this call
// performed the transition.
func (p *SymbolPipeline) Flush(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.flushed {
		return false
	}

	started := time.Now()

	if sealed, err := p.agg.FlushCurrent().Take(); err == nil {
		p.histFiveMinute = append(p.histFiveMinute, p.enrichFiveMinute(sealed))
	}

	p.oneMinute = truncateTail(filterRegularHours(p.histOneMinute), p.retention)
	p.fiveMinute = truncateTail(filterRegularHours(p.histFiveMinute), p.retention)
	p.histOneMinute = nil
	p.histFiveMinute = nil
	p.flushed = true

	p.writeSeries(ctx, types.ResolutionOneMinute, p.oneMinute)
	p.writeSeries(ctx, types.ResolutionFiveMinute, p.fiveMinute)

	queued := p.pendingLive
	p.pendingLive = nil

	for _, bar := range queued {
		p.applyLiveLocked(ctx, bar)
	}

	p.metrics.BackfillFlushes.Inc()
	p.metrics.FlushDuration.Observe(time.Since(started).Seconds())

	p.log.Info("backfill flushed",
		zap.String("symbol", p.symbol),
		zap.Int("one_minute_bars", len(p.oneMinute)),
		zap.Int("five_minute_bars", len(p.fiveMinute)),
		zap.Int("queued_live_bars", len(queued)),
	)

	return true
}

// SeriesLengths returns the stored series sizes. Valid after Flush.
func (p *SymbolPipeline) SeriesLengths() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.oneMinute), len(p.fiveMinute)
}

// Series returns a copy of the stored series at the given resolution.
func (p *SymbolPipeline) Series(resolution types.Resolution) []types.EnrichedBar {
	p.mu.Lock()
	defer p.mu.Unlock()

	source := p.oneMinute
	if resolution == types.ResolutionFiveMinute {
		source = p.fiveMinute
	}

	out := make([]types.EnrichedBar, len(source))
	copy(out, source)

	return out
}

// OnLiveBar routes one newly closed one-minute bar. Bars arriving
// before the backfill flush are queued and replayed after it; processed
// bars follow the session-date guard and the asymmetric regular-hours
// policy.
func (p *SymbolPipeline) OnLiveBar(ctx context.Context, bar types.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.flushed {
		p.pendingLive = append(p.pendingLive, bar)

		return
	}

	p.applyLiveLocked(ctx, bar)
}

// applyLiveLocked processes one live bar under mu.
//
// Policy per bar, in order:
//   - wrong session date: dropped entirely;
//   - at or after 16:00 local: dropped entirely, state untouched;
//   - before 09:30 local: updates indicator and bucket state only;
//   - inside [09:30, 16:00): full processing, store and publish.
func (p *SymbolPipeline) applyLiveLocked(ctx context.Context, bar types.Bar) {
	if p.clock.SessionDate(bar.Time) != p.tradingDate {
		p.metrics.BarsDropped.WithLabelValues(metrics.DropReasonDateMismatch).Inc()
		p.log.Warn("dropping bar outside session date",
			zap.String("symbol", p.symbol),
			zap.String("bar_date", p.clock.SessionDate(bar.Time)),
			zap.String("trading_date", p.tradingDate),
		)

		return
	}

	if p.clock.AfterClose(bar.Time) {
		p.metrics.BarsDropped.WithLabelValues(metrics.DropReasonAfterClose).Inc()

		return
	}

	enriched := p.enrichOneMinute(bar)
	p.metrics.BarsProcessed.WithLabelValues(string(types.ResolutionOneMinute)).Inc()

	if sealed, err := p.agg.Push(bar).Take(); err == nil {
		p.processSealedBucket(ctx, sealed)
	}

	// Every live bar supersedes the tick preview for its minute, even
	// pre-open bars that are never stored or published.
	p.clearPreviewUpTo(enriched.Time)

	if p.clock.BeforeOpen(bar.Time) {
		return
	}

	p.oneMinute = upsertBar(p.oneMinute, enriched, p.retention)
	p.writeSeries(ctx, types.ResolutionOneMinute, p.oneMinute)
	p.publishBar(ctx, types.ResolutionOneMinute, enriched)
}

// processSealedBucket runs a sealed five-minute bar through the
// five-minute machines. Buckets starting before the open keep warming
// state without being stored or published.
func (p *SymbolPipeline) processSealedBucket(ctx context.Context, sealed types.Bar) {
	enriched := p.enrichFiveMinute(sealed)
	p.metrics.BarsProcessed.WithLabelValues(string(types.ResolutionFiveMinute)).Inc()

	if !types.EpochInRegularHours(enriched.Time) {
		return
	}

	p.fiveMinute = upsertBar(p.fiveMinute, enriched, p.retention)
	p.writeSeries(ctx, types.ResolutionFiveMinute, p.fiveMinute)
	p.publishBar(ctx, types.ResolutionFiveMinute, enriched)
}

// OnTick folds one price tick into the display-only preview bar and
// publishes it. Runs outside the bar-processing lock.
func (p *SymbolPipeline) OnTick(ctx context.Context, tick types.QuoteTick) {
	price := types.Round4(tick.Mid())
	minute := types.MinuteBucket(p.clock.LocalEpoch(tick.Time))

	p.previewMu.Lock()

	if !p.hasPreview || p.preview.Time != minute {
		p.preview = types.PreviewBar{
			Symbol: p.symbol,
			Time:   minute,
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
		}
		p.hasPreview = true
	} else {
		if price > p.preview.High {
			p.preview.High = price
		}

		if price < p.preview.Low {
			p.preview.Low = price
		}

		p.preview.Close = price
	}

	preview := p.preview
	p.previewMu.Unlock()

	p.metrics.TicksProcessed.Inc()

	if err := p.seriesOut.PublishPreview(ctx, p.symbol, preview); err != nil {
		p.metrics.SinkWriteErrors.Inc()
		p.log.Warn("preview publish failed", zap.String("symbol", p.symbol), zap.Error(err))
	}
}

// clearPreviewUpTo discards the in-progress preview once the
// authoritative bar for its minute has closed.
func (p *SymbolPipeline) clearPreviewUpTo(barTime int64) {
	p.previewMu.Lock()
	defer p.previewMu.Unlock()

	if p.hasPreview && p.preview.Time <= barTime {
		p.hasPreview = false
	}
}

func (p *SymbolPipeline) enrichOneMinute(bar types.Bar) types.EnrichedBar {
	band := p.band1m.Update(bar.Open, bar.High, bar.Low, bar.Close)
	ema := p.ema1m.Update(bar.Close)

	return p.buildEnriched(bar, band, ema)
}

func (p *SymbolPipeline) enrichFiveMinute(bar types.Bar) types.EnrichedBar {
	band := p.band5m.Update(bar.Open, bar.High, bar.Low, bar.Close)
	ema := p.ema5m.Update(bar.Close)

	return p.buildEnriched(bar, band, ema)
}

func (p *SymbolPipeline) buildEnriched(bar types.Bar, band indicator.BandValue, ema optional.Option[float64]) types.EnrichedBar {
	return types.EnrichedBar{
		Symbol:     bar.Symbol,
		Time:       p.clock.LocalEpoch(bar.Time),
		Open:       bar.Open,
		High:       bar.High,
		Low:        bar.Low,
		Close:      bar.Close,
		Volume:     bar.Volume,
		Ema:        ema,
		TrendValue: band.Value,
		TrendDir:   band.Direction,
		TrendUpper: band.Upper,
		TrendLower: band.Lower,
	}
}

// writeSeries and publishBar are fire-and-forget: a failed sink call is
// logged and counted, and never rolls back indicator state.
func (p *SymbolPipeline) writeSeries(ctx context.Context, resolution types.Resolution, bars []types.EnrichedBar) {
	if err := p.seriesOut.WriteSeries(ctx, p.symbol, resolution, bars); err != nil {
		p.metrics.SinkWriteErrors.Inc()
		p.log.Warn("series write failed",
			zap.String("symbol", p.symbol),
			zap.String("resolution", string(resolution)),
			zap.Error(err),
		)
	}
}

func (p *SymbolPipeline) publishBar(ctx context.Context, resolution types.Resolution, bar types.EnrichedBar) {
	p.metrics.BarsPublished.WithLabelValues(string(resolution)).Inc()

	if err := p.seriesOut.PublishBar(ctx, p.symbol, resolution, bar); err != nil {
		p.metrics.SinkWriteErrors.Inc()
		p.log.Warn("bar publish failed",
			zap.String("symbol", p.symbol),
			zap.String("resolution", string(resolution)),
			zap.Error(err),
		)
	}

	if p.observer != nil {
		p.observer(p.symbol, resolution, bar)
	}
}

// upsertBar appends a bar to the series unless its timestamp equals the
// last stored bar's, in which case it replaces that entry. The series
// is then truncated to the retention bound.
func upsertBar(series []types.EnrichedBar, bar types.EnrichedBar, retention int) []types.EnrichedBar {
	if n := len(series); n > 0 && series[n-1].Time == bar.Time {
		series[n-1] = bar

		return series
	}

	return truncateTail(append(series, bar), retention)
}

func truncateTail(bars []types.EnrichedBar, limit int) []types.EnrichedBar {
	if len(bars) <= limit {
		return bars
	}

	return bars[len(bars)-limit:]
}

func filterRegularHours(bars []types.EnrichedBar) []types.EnrichedBar {
	kept := make([]types.EnrichedBar, 0, len(bars))

	for _, bar := range bars {
		if types.EpochInRegularHours(bar.Time) {
			kept = append(kept, bar)
		}
	}

	return kept
}
