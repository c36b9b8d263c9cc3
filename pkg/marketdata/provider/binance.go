package provider

import (
	"context"
	"iter"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// binanceKlinesPageSize is the maximum number of klines per REST request.
const binanceKlinesPageSize = 500

// streamBufferSize bounds the in-flight events between the websocket
// callbacks and the iterator consumer.
const streamBufferSize = 256

// WsKlineHandler handles kline events from the websocket service.
type WsKlineHandler func(event *BinanceWsKlineEvent)

// WsBookTickerHandler handles best bid/ask events from the websocket service.
type WsBookTickerHandler func(event *BinanceWsBookTickerEvent)

// WsErrorHandler handles websocket errors.
type WsErrorHandler func(err error)

// BinanceWsKline is a candlestick carried by a kline websocket event.
type BinanceWsKline struct {
	StartTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
	IsFinal   bool
}

// BinanceWsKlineEvent is a kline websocket event.
type BinanceWsKlineEvent struct {
	Symbol string
	Kline  BinanceWsKline
}

// BinanceWsBookTickerEvent is a best bid/ask websocket event.
type BinanceWsBookTickerEvent struct {
	Symbol       string
	BestBidPrice string
	BestAskPrice string
}

// BinanceWebSocketService abstracts the Binance websocket endpoints so
// streaming can be tested without a live connection.
type BinanceWebSocketService interface {
	WsKlineServe(symbol string, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (doneC chan struct{}, stopC chan struct{}, err error)
	WsBookTickerServe(symbol string, handler WsBookTickerHandler, errHandler WsErrorHandler) (doneC chan struct{}, stopC chan struct{}, err error)
}

// defaultBinanceWebSocketService forwards to the go-binance websocket
// functions, converting events to the local types.
type defaultBinanceWebSocketService struct{}

func (s *defaultBinanceWebSocketService) WsKlineServe(symbol string, interval string, handler WsKlineHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsKlineServe(symbol, interval, func(event *binance.WsKlineEvent) {
		handler(&BinanceWsKlineEvent{
			Symbol: event.Symbol,
			Kline: BinanceWsKline{
				StartTime: event.Kline.StartTime,
				Open:      event.Kline.Open,
				High:      event.Kline.High,
				Low:       event.Kline.Low,
				Close:     event.Kline.Close,
				Volume:    event.Kline.Volume,
				IsFinal:   event.Kline.IsFinal,
			},
		})
	}, binance.ErrHandler(errHandler))
}

func (s *defaultBinanceWebSocketService) WsBookTickerServe(symbol string, handler WsBookTickerHandler, errHandler WsErrorHandler) (chan struct{}, chan struct{}, error) {
	return binance.WsBookTickerServe(symbol, func(event *binance.WsBookTickerEvent) {
		handler(&BinanceWsBookTickerEvent{
			Symbol:       event.Symbol,
			BestBidPrice: event.BestBidPrice,
			BestAskPrice: event.BestAskPrice,
		})
	}, binance.ErrHandler(errHandler))
}

type BinanceClient struct {
	client *binance.Client
	ws     BinanceWebSocketService
}

var _ Provider = (*BinanceClient)(nil)

func NewBinanceClient() (Provider, error) {
	client := binance.NewClient("", "")

	return &BinanceClient{
		client: client,
		ws:     &defaultBinanceWebSocketService{},
	}, nil
}

// NewBinanceClientWithWebSocket creates a BinanceClient with an
// injected websocket service. Used in tests.
func NewBinanceClientWithWebSocket(client *binance.Client, ws BinanceWebSocketService) *BinanceClient {
	return &BinanceClient{
		client: client,
		ws:     ws,
	}
}

// HistoricalBars pages through the Binance klines REST endpoint and
// yields one bar per kline in increasing time order.
func (c *BinanceClient) HistoricalBars(ctx context.Context, symbol string, start time.Time, end time.Time) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		// Binance API uses milliseconds for timestamps
		currentStartTime := start.UnixMilli()
		endTimeMillis := end.UnixMilli()

		for currentStartTime < endTimeMillis {
			klines, err := c.client.NewKlinesService().
				Symbol(symbol).
				Interval("1m").
				StartTime(currentStartTime).
				EndTime(endTimeMillis).
				Limit(binanceKlinesPageSize).
				Do(ctx)
			if err != nil {
				//nolint:exhaustruct
				yield(types.Bar{}, errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to fetch klines for %s", symbol))

				return
			}

			if len(klines) == 0 {
				return
			}

			for _, k := range klines {
				bar, err := klineToBar(symbol, k)
				if err != nil {
					if !yield(bar, err) {
						return
					}

					continue
				}

				if !yield(bar, nil) {
					return
				}
			}

			// Next page starts after the last kline's close.
			currentStartTime = klines[len(klines)-1].CloseTime + 1

			if len(klines) < binanceKlinesPageSize {
				return
			}
		}
	}
}

// StreamBars yields finalized candles for the symbols. Partial kline
// updates are skipped.
func (c *BinanceClient) StreamBars(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		barC := make(chan types.Bar, streamBufferSize)
		errC := make(chan error, streamBufferSize)

		handler := func(event *BinanceWsKlineEvent) {
			if !event.Kline.IsFinal {
				return
			}

			bar, err := wsKlineToBar(event)
			if err != nil {
				select {
				case errC <- err:
				case <-ctx.Done():
				}

				return
			}

			select {
			case barC <- bar:
			case <-ctx.Done():
			}
		}

		errHandler := func(err error) {
			select {
			case errC <- errors.Wrap(errors.ErrCodeStreamFailed, "websocket error", err):
			case <-ctx.Done():
			}
		}

		stops := make([]chan struct{}, 0, len(symbols))

		defer func() {
			for _, stopC := range stops {
				close(stopC)
			}
		}()

		for _, symbol := range symbols {
			_, stopC, err := c.ws.WsKlineServe(symbol, interval, handler, errHandler)
			if err != nil {
				//nolint:exhaustruct
				yield(types.Bar{}, errors.Wrapf(errors.ErrCodeStreamFailed, err, "failed to connect to kline stream for %s", symbol))

				return
			}

			stops = append(stops, stopC)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case bar := <-barC:
				if !yield(bar, nil) {
					return
				}
			case err := <-errC:
				//nolint:exhaustruct
				if !yield(types.Bar{}, err) {
					return
				}
			}
		}
	}
}

// StreamTicks yields best bid/ask quotes for the symbols.
func (c *BinanceClient) StreamTicks(ctx context.Context, symbols []string) iter.Seq2[types.QuoteTick, error] {
	return func(yield func(types.QuoteTick, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		tickC := make(chan types.QuoteTick, streamBufferSize)
		errC := make(chan error, streamBufferSize)

		handler := func(event *BinanceWsBookTickerEvent) {
			tick, err := wsBookTickerToQuote(event)
			if err != nil {
				select {
				case errC <- err:
				case <-ctx.Done():
				}

				return
			}

			select {
			case tickC <- tick:
			case <-ctx.Done():
			}
		}

		errHandler := func(err error) {
			select {
			case errC <- errors.Wrap(errors.ErrCodeStreamFailed, "websocket error", err):
			case <-ctx.Done():
			}
		}

		stops := make([]chan struct{}, 0, len(symbols))

		defer func() {
			for _, stopC := range stops {
				close(stopC)
			}
		}()

		for _, symbol := range symbols {
			_, stopC, err := c.ws.WsBookTickerServe(symbol, handler, errHandler)
			if err != nil {
				//nolint:exhaustruct
				yield(types.QuoteTick{}, errors.Wrapf(errors.ErrCodeStreamFailed, err, "failed to connect to book ticker stream for %s", symbol))

				return
			}

			stops = append(stops, stopC)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case tick := <-tickC:
				if !yield(tick, nil) {
					return
				}
			case err := <-errC:
				//nolint:exhaustruct
				if !yield(types.QuoteTick{}, err) {
					return
				}
			}
		}
	}
}

func klineToBar(symbol string, k *binance.Kline) (types.Bar, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	parsed := make([]float64, len(fields))

	for i, field := range fields {
		value, err := parsePrice(field)
		if err != nil {
			//nolint:exhaustruct
			return types.Bar{}, errors.Wrapf(errors.ErrCodeBarParseFailed, err, "invalid kline for %s at %d", symbol, k.OpenTime)
		}

		parsed[i] = value
	}

	return types.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   parsed[0],
		High:   parsed[1],
		Low:    parsed[2],
		Close:  parsed[3],
		Volume: parsed[4],
	}, nil
}

func wsKlineToBar(event *BinanceWsKlineEvent) (types.Bar, error) {
	fields := []string{event.Kline.Open, event.Kline.High, event.Kline.Low, event.Kline.Close, event.Kline.Volume}
	parsed := make([]float64, len(fields))

	for i, field := range fields {
		value, err := parsePrice(field)
		if err != nil {
			//nolint:exhaustruct
			return types.Bar{}, errors.Wrapf(errors.ErrCodeBarParseFailed, err, "invalid kline event for %s", event.Symbol)
		}

		parsed[i] = value
	}

	return types.Bar{
		Symbol: event.Symbol,
		Time:   time.UnixMilli(event.Kline.StartTime).UTC(),
		Open:   parsed[0],
		High:   parsed[1],
		Low:    parsed[2],
		Close:  parsed[3],
		Volume: parsed[4],
	}, nil
}

func wsBookTickerToQuote(event *BinanceWsBookTickerEvent) (types.QuoteTick, error) {
	bid, err := parsePrice(event.BestBidPrice)
	if err != nil {
		//nolint:exhaustruct
		return types.QuoteTick{}, errors.Wrapf(errors.ErrCodeTickParseFailed, err, "invalid book ticker event for %s", event.Symbol)
	}

	ask, err := parsePrice(event.BestAskPrice)
	if err != nil {
		//nolint:exhaustruct
		return types.QuoteTick{}, errors.Wrapf(errors.ErrCodeTickParseFailed, err, "invalid book ticker event for %s", event.Symbol)
	}

	return types.QuoteTick{
		Symbol:   event.Symbol,
		Time:     time.Now().UTC(),
		BidPrice: bid,
		AskPrice: ask,
	}, nil
}

// parsePrice parses a decimal price string without intermediate binary
// rounding.
func parsePrice(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}

	return d.InexactFloat64(), nil
}
