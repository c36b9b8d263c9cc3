package sink

import (
	"context"
	"sync"

	"github.com/rxtech-lab/argo-feed/internal/types"
)

// MemorySink is an in-process SeriesSink used in tests and dry runs. It
// keeps the latest stored series per key and records every published
// bar in order.
type MemorySink struct {
	mu sync.Mutex

	series    map[string][]types.EnrichedBar
	published map[string][]types.EnrichedBar
	previews  map[string][]types.PreviewBar

	// WriteErr, when set, is returned by WriteSeries without mutating
	// the stored series. Used to exercise sink-failure paths.
	WriteErr error
}

var _ SeriesSink = (*MemorySink)(nil)

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	//nolint:exhaustruct
	return &MemorySink{
		series:    make(map[string][]types.EnrichedBar),
		published: make(map[string][]types.EnrichedBar),
		previews:  make(map[string][]types.PreviewBar),
	}
}

// WriteSeries replaces the stored series for the key.
func (s *MemorySink) WriteSeries(_ context.Context, symbol string, resolution types.Resolution, bars []types.EnrichedBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	stored := make([]types.EnrichedBar, len(bars))
	copy(stored, bars)
	s.series[SeriesKey(symbol, resolution)] = stored

	return nil
}

// PublishBar records the bar on the symbol's channel.
func (s *MemorySink) PublishBar(_ context.Context, symbol string, resolution types.Resolution, bar types.EnrichedBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel := BarChannel(symbol, resolution)
	s.published[channel] = append(s.published[channel], bar)

	return nil
}

// PublishPreview records the preview bar on the symbol's tick channel.
func (s *MemorySink) PublishPreview(_ context.Context, symbol string, bar types.PreviewBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel := PreviewChannel(symbol)
	s.previews[channel] = append(s.previews[channel], bar)

	return nil
}

// Close is a no-op.
func (s *MemorySink) Close() error {
	return nil
}

// Series returns a copy of the stored series for the symbol at the
// given resolution.
func (s *MemorySink) Series(symbol string, resolution types.Resolution) []types.EnrichedBar {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.series[SeriesKey(symbol, resolution)]
	out := make([]types.EnrichedBar, len(stored))
	copy(out, stored)

	return out
}

// Published returns the bars published so far on the symbol's channel
// for the given resolution, in publish order.
func (s *MemorySink) Published(symbol string, resolution types.Resolution) []types.EnrichedBar {
	s.mu.Lock()
	defer s.mu.Unlock()

	published := s.published[BarChannel(symbol, resolution)]
	out := make([]types.EnrichedBar, len(published))
	copy(out, published)

	return out
}

// Previews returns the preview bars published so far for the symbol.
func (s *MemorySink) Previews(symbol string) []types.PreviewBar {
	s.mu.Lock()
	defer s.mu.Unlock()

	previews := s.previews[PreviewChannel(symbol)]
	out := make([]types.PreviewBar, len(previews))
	copy(out, previews)

	return out
}
