package engine_v1

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/internal/feed"
	"github.com/rxtech-lab/argo-feed/internal/sink"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-feed/pkg/marketdata/writer"
)

// mockFeedProvider replays canned historical bars and forwards live
// bars and ticks from channels.
type mockFeedProvider struct {
	historical map[string][]types.Bar
	liveBars   chan types.Bar
	ticks      chan types.QuoteTick
}

var _ provider.Provider = (*mockFeedProvider)(nil)

func newMockFeedProvider() *mockFeedProvider {
	return &mockFeedProvider{
		historical: make(map[string][]types.Bar),
		liveBars:   make(chan types.Bar, 16),
		ticks:      make(chan types.QuoteTick, 16),
	}
}

func (m *mockFeedProvider) HistoricalBars(_ context.Context, symbol string, _ time.Time, _ time.Time) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range m.historical[symbol] {
			if !yield(bar, nil) {
				return
			}
		}
	}
}

func (m *mockFeedProvider) StreamBars(ctx context.Context, _ []string, _ string) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case bar := <-m.liveBars:
				if !yield(bar, nil) {
					return
				}
			}
		}
	}
}

func (m *mockFeedProvider) StreamTicks(ctx context.Context, _ []string) iter.Seq2[types.QuoteTick, error] {
	return func(yield func(types.QuoteTick, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-m.ticks:
				if !yield(tick, nil) {
					return
				}
			}
		}
	}
}

type FeedEngineV1TestSuite struct {
	suite.Suite
	engine   *FeedEngineV1
	provider *mockFeedProvider
	memory   *sink.MemorySink
	clock    *types.MarketClock
}

func (suite *FeedEngineV1TestSuite) SetupTest() {
	clock, err := types.NewMarketClock("America/New_York")
	suite.Require().NoError(err)
	suite.clock = clock

	engine, err := NewFeedEngineV1()
	suite.Require().NoError(err)
	suite.engine = engine

	suite.provider = newMockFeedProvider()
	suite.memory = sink.NewMemorySink()
}

func TestFeedEngineV1Suite(t *testing.T) {
	suite.Run(t, new(FeedEngineV1TestSuite))
}

// bar builds a one-minute bar on today's trading date so the live date
// guard accepts it.
func (suite *FeedEngineV1TestSuite) bar(symbol string, minuteOffset int, close float64) types.Bar {
	now := time.Now().In(suite.clock.Location())
	base := time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, suite.clock.Location())

	return types.Bar{
		Symbol: symbol,
		Time:   base.Add(time.Duration(minuteOffset) * time.Minute),
		Open:   close,
		High:   close + 1,
		Low:    close - 1,
		Close:  close,
		Volume: 5,
	}
}

func (suite *FeedEngineV1TestSuite) initializeEngine(symbols ...string) {
	suite.Require().NoError(suite.engine.Initialize(feed.FeedEngineConfig{
		Symbols:            symbols,
		BandPeriod:         2,
		BandMultiplier:     1.0,
		EmaPeriod:          2,
		RetentionBars:      50,
		BackfillFlushDelay: 30 * time.Second,
	}))
	suite.Require().NoError(suite.engine.SetProvider(suite.provider))
	suite.Require().NoError(suite.engine.SetSink(suite.memory))
}

func (suite *FeedEngineV1TestSuite) TestRunRequiresInitialize() {
	err := suite.engine.Run(context.Background(), feed.FeedEngineCallbacks{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineNotReady))
}

func (suite *FeedEngineV1TestSuite) TestRunRequiresProviderAndSink() {
	suite.Require().NoError(suite.engine.Initialize(feed.FeedEngineConfig{Symbols: []string{"AAPL"}}))

	err := suite.engine.Run(context.Background(), feed.FeedEngineCallbacks{})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineNotReady))
}

func (suite *FeedEngineV1TestSuite) TestCompleteBackfillUnknownSymbol() {
	suite.initializeEngine("AAPL")

	err := suite.engine.CompleteBackfill(context.Background(), "MSFT")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolUnknown))
}

func (suite *FeedEngineV1TestSuite) TestVersionGateRejectsFutureMinimum() {
	err := suite.engine.Initialize(feed.FeedEngineConfig{
		Symbols:          []string{"AAPL"},
		MinEngineVersion: "v99.0.0",
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEngineInitFailed))
}

func (suite *FeedEngineV1TestSuite) TestBackfillFlushesThenServesLiveBars() {
	suite.initializeEngine("AAPL")

	suite.provider.historical["AAPL"] = []types.Bar{
		suite.bar("AAPL", 0, 100),
		suite.bar("AAPL", 1, 101),
	}

	flushed := make(chan struct{})
	barClosed := make(chan types.EnrichedBar, 8)
	stopped := make(chan error, 1)

	onFlushed := feed.OnBackfillFlushedCallback(func(symbol string, oneMinute, fiveMinute int) {
		suite.Equal("AAPL", symbol)
		close(flushed)
	})
	onBarClosed := feed.OnBarClosedCallback(func(_ string, resolution types.Resolution, bar types.EnrichedBar) {
		if resolution == types.ResolutionOneMinute {
			barClosed <- bar
		}
	})
	onStop := feed.OnEngineStopCallback(func(err error) {
		stopped <- err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		_ = suite.engine.Run(ctx, feed.FeedEngineCallbacks{
			OnBackfillFlushed: &onFlushed,
			OnBarClosed:       &onBarClosed,
			OnEngineStop:      &onStop,
		})
	}()

	select {
	case <-flushed:
	case <-ctx.Done():
		suite.FailNow("backfill flush did not happen")
	}

	suite.Len(suite.memory.Series("AAPL", types.ResolutionOneMinute), 2)

	suite.provider.liveBars <- suite.bar("AAPL", 2, 102)

	select {
	case bar := <-barClosed:
		suite.InDelta(102.0, bar.Close, 0.001)
	case <-ctx.Done():
		suite.FailNow("live bar was not published")
	}

	suite.Len(suite.memory.Series("AAPL", types.ResolutionOneMinute), 3)

	cancel()

	select {
	case err := <-stopped:
		suite.NoError(err)
	case <-time.After(2 * time.Second):
		suite.FailNow("engine did not stop")
	}
}

// closableArchiveWriter counts writes that arrive after Close, which
// must never happen regardless of how bar observation and teardown
// interleave.
type closableArchiveWriter struct {
	mu               sync.Mutex
	closed           bool
	writesAfterClose int
}

var _ writer.EnrichedBarWriter = (*closableArchiveWriter)(nil)

func (w *closableArchiveWriter) Initialize() error { return nil }

func (w *closableArchiveWriter) Write(_ types.EnrichedBar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.writesAfterClose++
	}

	return nil
}

func (w *closableArchiveWriter) Finalize() (string, error) { return "", nil }

func (w *closableArchiveWriter) GetOutputPath() string { return "" }

func (w *closableArchiveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true

	return nil
}

func (suite *FeedEngineV1TestSuite) TestArchiveTeardownBlocksLateWrites() {
	suite.initializeEngine("AAPL")

	archiveWriter := &closableArchiveWriter{}
	suite.engine.archive[types.ResolutionOneMinute] = archiveWriter

	enriched := types.EnrichedBar{
		Symbol: "AAPL",
		Time:   time.Now().Unix(),
		Open:   100,
		High:   101,
		Low:    99,
		Close:  100.5,
		Volume: 5,
	}

	// A fallback flush timer that fired before it was stopped can still
	// publish bars while the engine is tearing down the archive.
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		for i := 0; i < 500; i++ {
			suite.engine.observeBar("AAPL", types.ResolutionOneMinute, enriched)
		}
	}()

	suite.engine.closeArchive()
	wg.Wait()

	suite.Zero(archiveWriter.writesAfterClose, "archive writer received a write after Close")
	suite.Empty(suite.engine.archive)
}

func (suite *FeedEngineV1TestSuite) TestBarForUnknownSymbolIsDropped() {
	suite.initializeEngine("AAPL")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		_ = suite.engine.Run(ctx, feed.FeedEngineCallbacks{})
	}()

	suite.provider.liveBars <- suite.bar("TSLA", 0, 50)

	// Give the dispatch loop a moment, then confirm nothing was stored.
	time.Sleep(100 * time.Millisecond)
	suite.Empty(suite.memory.Series("TSLA", types.ResolutionOneMinute))

	cancel()
	<-done
}
