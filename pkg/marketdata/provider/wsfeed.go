package provider

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// Feed frame types exchanged with the host engine.
const (
	feedFrameBar  = "bar"
	feedFrameTick = "tick"
	feedFrameEnd  = "end"
	feedFrameErr  = "error"
)

// feedRequest is sent to the host after connecting.
type feedRequest struct {
	Action   string   `json:"action"`
	Symbols  []string `json:"symbols,omitempty"`
	Symbol   string   `json:"symbol,omitempty"`
	Interval string   `json:"interval,omitempty"`
	Start    int64    `json:"start,omitempty"`
	End      int64    `json:"end,omitempty"`
}

// feedFrame is a single message from the host. Time fields are epoch
// milliseconds.
type feedFrame struct {
	Type    string  `json:"type"`
	Symbol  string  `json:"symbol"`
	Time    int64   `json:"time"`
	Open    float64 `json:"open"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
	Close   float64 `json:"close"`
	Volume  float64 `json:"volume"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	Message string  `json:"message"`
}

// WebsocketFeedClient bridges a host trading engine that exposes its
// market data over a websocket endpoint speaking JSON frames. Each call
// opens its own connection, sends one request, and reads frames until
// an end frame, an error frame, or context cancellation.
type WebsocketFeedClient struct {
	url    string
	dialer *websocket.Dialer
}

var _ Provider = (*WebsocketFeedClient)(nil)

func NewWebsocketFeedClient(url string) (Provider, error) {
	if url == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "url is required")
	}

	return &WebsocketFeedClient{
		url:    url,
		dialer: websocket.DefaultDialer,
	}, nil
}

// HistoricalBars requests a bounded replay of one-minute bars. The host
// terminates the replay with an end frame.
func (c *WebsocketFeedClient) HistoricalBars(ctx context.Context, symbol string, start time.Time, end time.Time) iter.Seq2[types.Bar, error] {
	request := feedRequest{
		Action:   "history",
		Symbols:  nil,
		Symbol:   symbol,
		Interval: "1m",
		Start:    start.UnixMilli(),
		End:      end.UnixMilli(),
	}

	return func(yield func(types.Bar, error) bool) {
		c.readFrames(ctx, request, func(frame feedFrame) bool {
			switch frame.Type {
			case feedFrameBar:
				return yield(frameToBar(frame), nil)
			case feedFrameErr:
				//nolint:exhaustruct
				return yield(types.Bar{}, errors.Newf(errors.ErrCodeHistoricalDataFailed, "feed error: %s", frame.Message))
			default:
				return true
			}
		}, func(err error) bool {
			//nolint:exhaustruct
			return yield(types.Bar{}, err)
		})
	}
}

// StreamBars subscribes to closed bars for the symbols.
func (c *WebsocketFeedClient) StreamBars(ctx context.Context, symbols []string, interval string) iter.Seq2[types.Bar, error] {
	//nolint:exhaustruct
	request := feedRequest{
		Action:   "subscribe_bars",
		Symbols:  symbols,
		Interval: interval,
	}

	return func(yield func(types.Bar, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.Bar{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		c.readFrames(ctx, request, func(frame feedFrame) bool {
			switch frame.Type {
			case feedFrameBar:
				return yield(frameToBar(frame), nil)
			case feedFrameErr:
				//nolint:exhaustruct
				return yield(types.Bar{}, errors.Newf(errors.ErrCodeStreamFailed, "feed error: %s", frame.Message))
			default:
				return true
			}
		}, func(err error) bool {
			//nolint:exhaustruct
			return yield(types.Bar{}, err)
		})
	}
}

// StreamTicks subscribes to best bid/ask quotes for the symbols.
func (c *WebsocketFeedClient) StreamTicks(ctx context.Context, symbols []string) iter.Seq2[types.QuoteTick, error] {
	//nolint:exhaustruct
	request := feedRequest{
		Action:  "subscribe_ticks",
		Symbols: symbols,
	}

	return func(yield func(types.QuoteTick, error) bool) {
		if len(symbols) == 0 {
			//nolint:exhaustruct
			yield(types.QuoteTick{}, errors.New(errors.ErrCodeInvalidParameter, "no symbols to stream"))

			return
		}

		c.readFrames(ctx, request, func(frame feedFrame) bool {
			switch frame.Type {
			case feedFrameTick:
				return yield(types.QuoteTick{
					Symbol:   frame.Symbol,
					Time:     time.UnixMilli(frame.Time).UTC(),
					BidPrice: frame.Bid,
					AskPrice: frame.Ask,
				}, nil)
			case feedFrameErr:
				//nolint:exhaustruct
				return yield(types.QuoteTick{}, errors.Newf(errors.ErrCodeStreamFailed, "feed error: %s", frame.Message))
			default:
				return true
			}
		}, func(err error) bool {
			//nolint:exhaustruct
			return yield(types.QuoteTick{}, err)
		})
	}
}

// readFrames dials the host, sends the request and pumps frames into
// onFrame until an end frame, a read failure, or context cancellation.
// onFrame and onError return false to stop reading.
func (c *WebsocketFeedClient) readFrames(ctx context.Context, request feedRequest, onFrame func(feedFrame) bool, onError func(error) bool) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		onError(errors.Wrapf(errors.ErrCodeProviderUnavailable, err, "failed to connect to feed at %s", c.url))

		return
	}

	defer conn.Close()

	if err := conn.WriteJSON(request); err != nil {
		onError(errors.Wrap(errors.ErrCodeStreamFailed, "failed to send feed request", err))

		return
	}

	// Unblock ReadMessage when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			onError(errors.Wrap(errors.ErrCodeStreamFailed, "feed connection lost", err))

			return
		}

		var frame feedFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			if !onError(errors.Wrap(errors.ErrCodeBarParseFailed, "invalid feed frame", err)) {
				return
			}

			continue
		}

		if frame.Type == feedFrameEnd {
			return
		}

		if !onFrame(frame) {
			return
		}
	}
}

func frameToBar(frame feedFrame) types.Bar {
	return types.Bar{
		Symbol: frame.Symbol,
		Time:   time.UnixMilli(frame.Time).UTC(),
		Open:   frame.Open,
		High:   frame.High,
		Low:    frame.Low,
		Close:  frame.Close,
		Volume: frame.Volume,
	}
}
