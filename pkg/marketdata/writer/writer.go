package writer

import (
	"github.com/rxtech-lab/argo-feed/internal/types"
)

// EnrichedBarWriter defines the interface for archiving enriched bars
// to a destination.
type EnrichedBarWriter interface {
	// Initialize sets up the writer, potentially creating tables or files.
	Initialize() error
	// Write persists a single enriched bar.
	Write(bar types.EnrichedBar) error
	// Finalize completes the writing process (e.g., commits transactions, exports files).
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
