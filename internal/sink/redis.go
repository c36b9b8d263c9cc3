package sink

import (
	"context"
	"encoding/json"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/types"
	"github.com/rxtech-lab/argo-feed/pkg/errors"
)

// RedisSink stores bar series as JSON arrays under per-symbol keys and
// publishes closed bars on per-symbol channels.
type RedisSink struct {
	client *goredis.Client
	logger *logger.Logger
}

var _ SeriesSink = (*RedisSink)(nil)

// NewRedisSink connects to redis at addr and verifies the connection
// with a ping.
func NewRedisSink(ctx context.Context, addr string, password string, db int, log *logger.Logger) (*RedisSink, error) {
	//nolint:exhaustruct
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSinkUnavailable, err, "cannot connect to redis at %s", addr)
	}

	log.Info("connected to redis", zap.String("addr", addr), zap.Int("db", db))

	return &RedisSink{
		client: client,
		logger: log,
	}, nil
}

// WriteSeries replaces the stored series for the symbol at the given
// resolution with the provided bars.
func (s *RedisSink) WriteSeries(ctx context.Context, symbol string, resolution types.Resolution, bars []types.EnrichedBar) error {
	data, err := json.Marshal(bars)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSinkWriteFailed, err, "cannot marshal %s series for %s", resolution, symbol)
	}

	key := SeriesKey(symbol, resolution)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeSinkWriteFailed, err, "cannot write series key %s", key)
	}

	return nil
}

// PublishBar announces a single newly closed enriched bar on the
// symbol's channel for the given resolution.
func (s *RedisSink) PublishBar(ctx context.Context, symbol string, resolution types.Resolution, bar types.EnrichedBar) error {
	data, err := json.Marshal(bar)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSinkPublishFailed, err, "cannot marshal %s bar for %s", resolution, symbol)
	}

	channel := BarChannel(symbol, resolution)
	if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeSinkPublishFailed, err, "cannot publish to channel %s", channel)
	}

	return nil
}

// PublishPreview announces the in-progress display-only bar built from
// ticks.
func (s *RedisSink) PublishPreview(ctx context.Context, symbol string, bar types.PreviewBar) error {
	data, err := json.Marshal(bar)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSinkPublishFailed, err, "cannot marshal preview bar for %s", symbol)
	}

	channel := PreviewChannel(symbol)
	if err := s.client.Publish(ctx, channel, data).Err(); err != nil {
		return errors.Wrapf(errors.ErrCodeSinkPublishFailed, err, "cannot publish to channel %s", channel)
	}

	return nil
}

// Close closes the underlying redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
