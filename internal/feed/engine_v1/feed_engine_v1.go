// Package engine_v1 implements the feed engine: per-symbol pipelines,
// the backfill-to-live handoff, and the live bar and tick loops.
package engine_v1

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/feed"
	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/metrics"
	"github.com/rxtech-lab/argo-feed/internal/session"
	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/internal/version"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/writer"
)

// FeedEngineV1 is the first implementation of feed.FeedEngine. One
// instance serves one trading session: it backfills and warms every
// configured symbol, flushes each to live mode, then consumes the live
// bar and tick streams until the context is cancelled.
type FeedEngineV1 struct {
	config       feed.FeedEngineConfig
	dataProvider provider.Provider
	seriesSink   sink.SeriesSink
	log          *logger.Logger
	feedMetrics  *metrics.FeedMetrics
	clock        *types.MarketClock
	initialized  bool
	archiveDir   string

	sessionManager *session.SessionManager

	// archiveMu orders late flush-timer publishes against teardown:
	// a writer is never written to after closeArchive released it.
	archiveMu sync.Mutex
	archive   map[types.Resolution]writer.EnrichedBarWriter

	pipelineMu sync.RWMutex
	pipelines  map[string]*SymbolPipeline

	timerMu     sync.Mutex
	flushTimers map[string]*time.Timer

	callbacks feed.FeedEngineCallbacks
}

var _ feed.FeedEngine = (*FeedEngineV1)(nil)

// NewFeedEngineV1 creates an engine without archiving.
func NewFeedEngineV1() (*FeedEngineV1, error) {
	log, err := logger.NewLogger()
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct
	return &FeedEngineV1{
		log:         log,
		feedMetrics: metrics.NewFeedMetrics(),
		pipelines:   make(map[string]*SymbolPipeline),
		flushTimers: make(map[string]*time.Timer),
		archive:     make(map[types.Resolution]writer.EnrichedBarWriter),
	}, nil
}

// Initialize implements feed.FeedEngine.
func (e *FeedEngineV1) Initialize(config feed.FeedEngineConfig) error {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return err
	}

	if err := version.CheckMinimumVersion(version.GetVersion(), config.MinEngineVersion); err != nil {
		return errors.Wrap(errors.ErrCodeEngineInitFailed, "engine version check failed", err)
	}

	clock, err := types.NewMarketClock(config.ExchangeTimezone)
	if err != nil {
		return err
	}

	e.config = config
	e.clock = clock
	e.initialized = true

	return nil
}

// SetProvider implements feed.FeedEngine.
func (e *FeedEngineV1) SetProvider(dataProvider provider.Provider) error {
	if dataProvider == nil {
		return errors.New(errors.ErrCodeInvalidProvider, "provider cannot be nil")
	}

	e.dataProvider = dataProvider

	return nil
}

// SetSink implements feed.FeedEngine.
func (e *FeedEngineV1) SetSink(seriesSink sink.SeriesSink) error {
	if seriesSink == nil {
		return errors.New(errors.ErrCodeSinkUnavailable, "sink cannot be nil")
	}

	e.seriesSink = seriesSink

	return nil
}

// SetArchiveDir implements feed.FeedEngine.
func (e *FeedEngineV1) SetArchiveDir(path string) error {
	if path == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "archive dir cannot be empty")
	}

	e.archiveDir = path

	return nil
}

// GetConfigSchema implements feed.FeedEngine.
func (e *FeedEngineV1) GetConfigSchema() (string, error) {
	return feed.GetConfigSchema()
}

// Metrics returns the engine's Prometheus metrics for HTTP exposure.
func (e *FeedEngineV1) Metrics() *metrics.FeedMetrics {
	return e.feedMetrics
}

// Pipeline returns the pipeline for a symbol, or an error when the
// symbol is not part of this session.
func (e *FeedEngineV1) Pipeline(symbol string) (*SymbolPipeline, error) {
	e.pipelineMu.RLock()
	defer e.pipelineMu.RUnlock()

	pipeline, ok := e.pipelines[symbol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSymbolUnknown, "no pipeline for symbol %s", symbol)
	}

	return pipeline, nil
}

// CompleteBackfill implements feed.FeedEngine: the explicit end-of-replay
// signal. The fallback flush timer for the symbol is cancelled.
func (e *FeedEngineV1) CompleteBackfill(ctx context.Context, symbol string) error {
	pipeline, err := e.Pipeline(symbol)
	if err != nil {
		return err
	}

	e.cancelFlushTimer(symbol)
	e.flushPipeline(ctx, pipeline)

	return nil
}

// Run implements feed.FeedEngine. It blocks until the context is
// cancelled or the live bar stream terminates.
func (e *FeedEngineV1) Run(ctx context.Context, callbacks feed.FeedEngineCallbacks) error {
	var runErr error

	defer func() {
		e.cancelAllFlushTimers()
		e.closeArchive()

		if callbacks.OnEngineStop != nil {
			(*callbacks.OnEngineStop)(runErr)
		}
	}()

	if err := e.preRunCheck(); err != nil {
		runErr = err

		return err
	}

	e.callbacks = callbacks

	if err := e.setupArchive(); err != nil {
		// Archiving is best-effort; the feed keeps running without it.
		e.log.Warn("archive setup failed, continuing without archive", zap.Error(err))
		e.archiveMu.Lock()
		e.archive = make(map[types.Resolution]writer.EnrichedBarWriter)
		e.archiveMu.Unlock()
	}

	tradingDate := e.clock.SessionDate(time.Now())
	if err := e.buildPipelines(tradingDate); err != nil {
		runErr = err

		return err
	}

	if callbacks.OnEngineStart != nil {
		if err := (*callbacks.OnEngineStart)(e.config.Symbols); err != nil {
			runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)

			return runErr
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	e.startBackfill(runCtx, &wg)

	if e.config.EnablePreview {
		wg.Add(1)

		go func() {
			defer wg.Done()
			e.consumeTicks(runCtx)
		}()
	}

	e.consumeLiveBars(runCtx)

	if ctx.Err() == nil {
		runErr = errors.New(errors.ErrCodeStreamFailed, "live bar stream terminated")
	}

	cancel()
	wg.Wait()

	return runErr
}

func (e *FeedEngineV1) preRunCheck() error {
	if !e.initialized {
		return errors.New(errors.ErrCodeEngineNotReady, "engine not initialized")
	}

	if e.dataProvider == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "no provider configured")
	}

	if e.seriesSink == nil {
		return errors.New(errors.ErrCodeEngineNotReady, "no sink configured")
	}

	return nil
}

func (e *FeedEngineV1) buildPipelines(tradingDate string) error {
	e.pipelineMu.Lock()
	defer e.pipelineMu.Unlock()

	for _, symbol := range e.config.Symbols {
		pipeline, err := NewSymbolPipeline(symbol, PipelineParams{
			Clock:          e.clock,
			Sink:           e.seriesSink,
			Logger:         e.log,
			Metrics:        e.feedMetrics,
			BandPeriod:     e.config.BandPeriod,
			BandMultiplier: e.config.BandMultiplier,
			EmaPeriod:      e.config.EmaPeriod,
			RetentionBars:  e.config.RetentionBars,
			TradingDate:    tradingDate,
			Observer:       e.observeBar,
		})
		if err != nil {
			return err
		}

		e.pipelines[symbol] = pipeline
	}

	return nil
}

// startBackfill launches one historical replay per symbol. A symbol is
// flushed to live mode when its replay completes; the fallback timer
// covers providers whose replay never terminates cleanly.
func (e *FeedEngineV1) startBackfill(ctx context.Context, wg *sync.WaitGroup) {
	end := time.Now()
	start := end.Add(-e.config.BackfillWindow)

	for _, symbol := range e.config.Symbols {
		e.scheduleFlushTimer(ctx, symbol)

		wg.Add(1)

		go func(symbol string) {
			defer wg.Done()

			pipeline, err := e.Pipeline(symbol)
			if err != nil {
				return
			}

			for bar, err := range e.dataProvider.HistoricalBars(ctx, symbol, start, end) {
				if err != nil {
					e.reportError(err)

					continue
				}

				if err := pipeline.OnHistoricalBar(bar); err != nil {
					e.reportError(err)
				}
			}

			if ctx.Err() != nil {
				return
			}

			// Replay ended; flush without waiting for the timer.
			if err := e.CompleteBackfill(ctx, symbol); err != nil {
				e.reportError(err)
			}
		}(symbol)
	}
}

func (e *FeedEngineV1) scheduleFlushTimer(ctx context.Context, symbol string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	e.flushTimers[symbol] = time.AfterFunc(e.config.BackfillFlushDelay, func() {
		pipeline, err := e.Pipeline(symbol)
		if err != nil {
			return
		}

		e.log.Info("backfill flush timer fired", zap.String("symbol", symbol))
		e.flushPipeline(ctx, pipeline)
	})
}

func (e *FeedEngineV1) cancelFlushTimer(symbol string) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if timer, ok := e.flushTimers[symbol]; ok {
		timer.Stop()
		delete(e.flushTimers, symbol)
	}
}

func (e *FeedEngineV1) cancelAllFlushTimers() {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	for symbol, timer := range e.flushTimers {
		timer.Stop()
		delete(e.flushTimers, symbol)
	}
}

func (e *FeedEngineV1) flushPipeline(ctx context.Context, pipeline *SymbolPipeline) {
	if !pipeline.Flush(ctx) {
		return
	}

	if e.callbacks.OnBackfillFlushed != nil {
		oneMinute, fiveMinute := pipeline.SeriesLengths()
		(*e.callbacks.OnBackfillFlushed)(pipeline.Symbol(), oneMinute, fiveMinute)
	}
}

// consumeLiveBars drains the live one-minute bar stream, dispatching
// each bar to its symbol's pipeline. Returns when the stream ends.
func (e *FeedEngineV1) consumeLiveBars(ctx context.Context) {
	for bar, err := range e.dataProvider.StreamBars(ctx, e.config.Symbols, "1m") {
		if err != nil {
			e.reportError(err)

			continue
		}

		pipeline, err := e.Pipeline(bar.Symbol)
		if err != nil {
			e.feedMetrics.BarsDropped.WithLabelValues(metrics.DropReasonUnknownSymbol).Inc()
			e.log.Warn("bar for unknown symbol", zap.String("symbol", bar.Symbol))

			continue
		}

		pipeline.OnLiveBar(ctx, bar)
	}
}

func (e *FeedEngineV1) consumeTicks(ctx context.Context) {
	for tick, err := range e.dataProvider.StreamTicks(ctx, e.config.Symbols) {
		if err != nil {
			e.reportError(err)

			continue
		}

		pipeline, err := e.Pipeline(tick.Symbol)
		if err != nil {
			continue
		}

		pipeline.OnTick(ctx, tick)
	}
}

// observeBar receives every published enriched bar: it feeds the
// archive writers and the host's OnBarClosed callback.
func (e *FeedEngineV1) observeBar(symbol string, resolution types.Resolution, bar types.EnrichedBar) {
	e.archiveMu.Lock()

	if archiveWriter, ok := e.archive[resolution]; ok {
		if err := archiveWriter.Write(bar); err != nil {
			e.log.Warn("archive write failed",
				zap.String("symbol", symbol),
				zap.String("resolution", string(resolution)),
				zap.Error(errors.Wrap(errors.ErrCodeArchiveWriteFailed, "cannot archive bar", err)),
			)
		}
	}

	e.archiveMu.Unlock()

	if e.callbacks.OnBarClosed != nil {
		(*e.callbacks.OnBarClosed)(symbol, resolution, bar)
	}
}

func (e *FeedEngineV1) setupArchive() error {
	if e.archiveDir == "" {
		return nil
	}

	e.sessionManager = session.NewSessionManager(e.clock, e.log)
	if err := e.sessionManager.Initialize(e.archiveDir); err != nil {
		return err
	}

	e.archiveMu.Lock()
	defer e.archiveMu.Unlock()

	for _, resolution := range []types.Resolution{types.ResolutionOneMinute, types.ResolutionFiveMinute} {
		archiveWriter := writer.NewDuckDBWriter(e.sessionManager.GetCurrentRunPath(), resolution)
		if err := archiveWriter.Initialize(); err != nil {
			return err
		}

		e.archive[resolution] = archiveWriter
	}

	return nil
}

func (e *FeedEngineV1) closeArchive() {
	e.archiveMu.Lock()
	defer e.archiveMu.Unlock()

	for resolution, archiveWriter := range e.archive {
		if _, err := archiveWriter.Finalize(); err != nil {
			e.log.Warn("archive finalize failed", zap.String("resolution", string(resolution)), zap.Error(err))
		}

		if err := archiveWriter.Close(); err != nil {
			e.log.Warn("archive close failed", zap.String("resolution", string(resolution)), zap.Error(err))
		}

		delete(e.archive, resolution)
	}
}

func (e *FeedEngineV1) reportError(err error) {
	e.log.Warn("feed error", zap.Error(err))

	if e.callbacks.OnError != nil {
		(*e.callbacks.OnError)(err)
	}
}
