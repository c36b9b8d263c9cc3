package sink

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/argo-feed/internal/types"
)

// SeriesSink receives enriched bar series and single-bar events for
// downstream consumers. Write failures are reported to the caller but
// must not corrupt sink state; the next write is attempted
// independently.
type SeriesSink interface {
	// WriteSeries replaces the stored series for the symbol at the given
	// resolution with the provided bars.
	WriteSeries(ctx context.Context, symbol string, resolution types.Resolution, bars []types.EnrichedBar) error

	// PublishBar announces a single newly closed enriched bar on the
	// symbol's channel for the given resolution.
	PublishBar(ctx context.Context, symbol string, resolution types.Resolution, bar types.EnrichedBar) error

	// PublishPreview announces the in-progress display-only bar built
	// from ticks. Preview bars are never stored.
	PublishPreview(ctx context.Context, symbol string, bar types.PreviewBar) error

	// Close releases sink resources.
	Close() error
}

// SeriesKey returns the storage key for a symbol's bar series.
func SeriesKey(symbol string, resolution types.Resolution) string {
	return fmt.Sprintf("bars:%s:%s", resolution, symbol)
}

// BarChannel returns the pub-sub channel for closed bars.
func BarChannel(symbol string, resolution types.Resolution) string {
	return fmt.Sprintf("kline:%s:%s", resolution, symbol)
}

// PreviewChannel returns the pub-sub channel for tick preview bars.
func PreviewChannel(symbol string) string {
	return fmt.Sprintf("bars:1m:tick:%s", symbol)
}
