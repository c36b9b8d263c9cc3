package provider

import (
	"context"
	"iter"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	polygonws "github.com/polygon-io/client-go/websocket"
	wsmodels "github.com/polygon-io/client-go/websocket/models"

	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// PolygonWebSocketService abstracts the polygon websocket client so
// streaming can be tested without a live connection.
type PolygonWebSocketService interface {
	Connect() error
	Subscribe(topic polygonws.Topic, tickers ...string) error
	Unsubscribe(topic polygonws.Topic, tickers ...string) error
	Output() <-chan any
	Error() <-chan error
	Close()
}

type PolygonClient struct {
	apiKey string
	client *polygon.Client
	ws     PolygonWebSocketService
}

var _ Provider = (*PolygonClient)(nil)

func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "apiKey is required")
	}

	client := polygon.New(apiKey)

	return &PolygonClient{
		apiKey: apiKey,
		client: client,
		ws:     nil,
	}, nil
}

// NewPolygonClientWithWebSocket creates a PolygonClient with an
// injected websocket service. Used in tests.
func NewPolygonClientWithWebSocket(apiKey string, ws PolygonWebSocketService) *PolygonClient {
	return &PolygonClient{
		apiKey: apiKey,
		client: polygon.New(apiKey),
		ws:     ws,
	}
}

// HistoricalBars yields one-minute aggregates for the symbol in
// increasing time order via the polygon aggregates endpoint.
func (c *PolygonClient) HistoricalBars(ctx context.Context, symbol string, start time.Time, end time.Time) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		//nolint:exhaustruct // third-party struct with many optional fields
		params := models.ListAggsParams{
			Ticker:     symbol,
			Multiplier: 1,
			Timespan:   models.Minute,
			From:       models.Millis(start),
			To:         models.Millis(end),
		}.WithOrder(models.Asc).WithLimit(50000)

		aggs := c.client.ListAggs(ctx, params)

		for aggs.Next() {
			agg := aggs.Item()

			bar := types.Bar{
				Symbol: symbol,
				Time:   time.Time(agg.Timestamp).UTC(),
				Open:   agg.Open,
				High:   agg.High,
				Low:    agg.Low,
				Close:  agg.Close,
				Volume: agg.Volume,
			}

			if !yield(bar, nil) {
				return
			}
		}

		if err := aggs.Err(); err != nil {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.Wrapf(errors.ErrCodeHistoricalDataFailed, err, "failed to list aggregates for %s", symbol))
		}
	}
}

// StreamBars yields closed minute aggregates for the symbols from the
// polygon stocks websocket feed.
func (c *PolygonClient) StreamBars(ctx context.Context, symbols []string, _ string) iter.Seq2[types.Bar, error] {
	return func(yield func(types.Bar, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		ws, err := c.webSocketService()
		if err != nil {
			//nolint:exhaustruct
			yield(types.Bar{}, err)

			return
		}

		if err := ws.Connect(); err != nil {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeStreamFailed, "failed to connect to polygon websocket", err))

			return
		}

		defer ws.Close()

		if err := ws.Subscribe(polygonws.StocksMinAggs, symbols...); err != nil {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeStreamFailed, "failed to subscribe to minute aggregates", err))

			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ws.Output():
				if !ok {
					return
				}

				agg, ok := event.(wsmodels.EquityAgg)
				if !ok {
					continue
				}

				bar := types.Bar{
					Symbol: agg.Symbol,
					Time:   time.UnixMilli(agg.StartTimestamp).UTC(),
					Open:   agg.Open,
					High:   agg.High,
					Low:    agg.Low,
					Close:  agg.Close,
					Volume: agg.Volume,
				}

				if !yield(bar, nil) {
					return
				}
			case err, ok := <-ws.Error():
				if !ok {
					return
				}

				//nolint:exhaustruct
				if !yield(types.Bar{}, errors.Wrap(errors.ErrCodeStreamFailed, "websocket error", err)) {
					return
				}
			}
		}
	}
}

// StreamTicks yields best bid/ask quotes for the symbols from the
// polygon stocks websocket feed.
func (c *PolygonClient) StreamTicks(ctx context.Context, symbols []string) iter.Seq2[types.QuoteTick, error] {
	return func(yield func(types.QuoteTick, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		ws, err := c.webSocketService()
		if err != nil {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, err)

			return
		}

		if err := ws.Connect(); err != nil {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, errors.Wrap(errors.ErrCodeStreamFailed, "failed to connect to polygon websocket", err))

			return
		}

		defer ws.Close()

		if err := ws.Subscribe(polygonws.StocksQuotes, symbols...); err != nil {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, errors.Wrap(errors.ErrCodeStreamFailed, "failed to subscribe to quotes", err))

			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ws.Output():
				if !ok {
					return
				}

				quote, ok := event.(wsmodels.EquityQuote)
				if !ok {
					continue
				}

				tick := types.QuoteTick{
					Symbol:   quote.Symbol,
					Time:     time.UnixMilli(quote.Timestamp).UTC(),
					BidPrice: quote.BidPrice,
					AskPrice: quote.AskPrice,
				}

				if !yield(tick, nil) {
					return
				}
			case err, ok := <-ws.Error():
				if !ok {
					return
				}

				//nolint:exhaustruct
				if !yield(types.QuoteTick{}, errors.Wrap(errors.ErrCodeStreamFailed, "websocket error", err)) {
					return
				}
			}
		}
	}
}

// webSocketService returns the injected service, or dials the real
// polygon stocks feed.
func (c *PolygonClient) webSocketService() (PolygonWebSocketService, error) {
	if c.ws != nil {
		return c.ws, nil
	}

	//nolint:exhaustruct
	client, err := polygonws.New(polygonws.Config{
		APIKey: c.apiKey,
		Feed:   polygonws.RealTime,
		Market: polygonws.Stocks,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderUnavailable, "failed to create polygon websocket client", err)
	}

	return &defaultPolygonWebSocketService{client: client}, nil
}

// defaultPolygonWebSocketService adapts *polygonws.Client to the
// PolygonWebSocketService interface.
type defaultPolygonWebSocketService struct {
	client *polygonws.Client
}

func (s *defaultPolygonWebSocketService) Connect() error {
	return s.client.Connect()
}

func (s *defaultPolygonWebSocketService) Subscribe(topic polygonws.Topic, tickers ...string) error {
	return s.client.Subscribe(topic, tickers...)
}

func (s *defaultPolygonWebSocketService) Unsubscribe(topic polygonws.Topic, tickers ...string) error {
	return s.client.Unsubscribe(topic, tickers...)
}

func (s *defaultPolygonWebSocketService) Output() <-chan any {
	return s.client.Output()
}

func (s *defaultPolygonWebSocketService) Error() <-chan error {
	return s.client.Error()
}

func (s *defaultPolygonWebSocketService) Close() {
	s.client.Close()
}
