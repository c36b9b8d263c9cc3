package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-feed/internal/types"
)

// DuckDBWriter implements EnrichedBarWriter backed by an in-memory
// DuckDB table exported to a parquet file. The file persists across
// restarts: existing rows are loaded on Initialize and merged with new
// writes, upserting on (symbol, time).
// The file is named: enriched_bars_{resolution}.parquet.
type DuckDBWriter struct {
	db         *sql.DB
	outputPath string
	mu         sync.Mutex
}

// NewDuckDBWriter creates a writer storing its parquet file under
// dataDir for the given resolution.
func NewDuckDBWriter(dataDir string, resolution types.Resolution) *DuckDBWriter {
	filename := fmt.Sprintf("enriched_bars_%s.parquet", resolution)

	return &DuckDBWriter{
		db:         nil,
		outputPath: filepath.Join(dataDir, filename),
		mu:         sync.Mutex{},
	}
}

// Initialize opens the DuckDB connection, creates the table and loads
// any existing rows from the parquet file.
func (w *DuckDBWriter) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	w.db = db

	_, err = w.db.Exec(`
		CREATE TABLE IF NOT EXISTS enriched_bars (
			id TEXT,
			symbol TEXT,
			time BIGINT,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			ema DOUBLE,
			trend_value DOUBLE,
			trend_dir INTEGER,
			trend_upper DOUBLE,
			trend_lower DOUBLE,
			PRIMARY KEY (symbol, time)
		)
	`)
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to create table: %w", err)
	}

	// Load existing data from parquet file if it exists
	if _, err := os.Stat(w.outputPath); err == nil {
		_, err = w.db.Exec(fmt.Sprintf(`
			INSERT INTO enriched_bars
			SELECT * FROM read_parquet('%s')
			ON CONFLICT (symbol, time) DO NOTHING
		`, w.outputPath))
		if err != nil {
			// File might be corrupted or empty; start fresh and
			// overwrite it on the next export.
			_ = err
		}
	}

	return nil
}

// Write persists a single enriched bar and exports to parquet.
// Duplicate (symbol, time) rows replace the existing row.
func (w *DuckDBWriter) Write(bar types.EnrichedBar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	id := uuid.New().String()

	_, err := w.db.Exec(`
		INSERT INTO enriched_bars (id, symbol, time, open, high, low, close, volume, ema, trend_value, trend_dir, trend_upper, trend_lower)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, time) DO UPDATE SET
			id = excluded.id,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			ema = excluded.ema,
			trend_value = excluded.trend_value,
			trend_dir = excluded.trend_dir,
			trend_upper = excluded.trend_upper,
			trend_lower = excluded.trend_lower
	`, id, bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
		nullableFloat(bar.Ema), bar.TrendValue, nullableDirection(bar.TrendDir), bar.TrendUpper, bar.TrendLower)
	if err != nil {
		return fmt.Errorf("failed to insert bar: %w", err)
	}

	if err := w.exportToParquet(); err != nil {
		return fmt.Errorf("failed to export to parquet: %w", err)
	}

	return nil
}

// Flush forces an export to parquet.
func (w *DuckDBWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return fmt.Errorf("writer not initialized")
	}

	return w.exportToParquet()
}

// Finalize exports the data and returns the output path.
func (w *DuckDBWriter) Finalize() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return "", fmt.Errorf("writer not initialized")
	}

	if err := w.exportToParquet(); err != nil {
		return "", err
	}

	return w.outputPath, nil
}

// GetOutputPath returns the parquet file path.
func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}

// Close releases database resources.
func (w *DuckDBWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}

		w.db = nil
	}

	return nil
}

func (w *DuckDBWriter) exportToParquet() error {
	_, err := w.db.Exec(fmt.Sprintf(`
		COPY (SELECT * FROM enriched_bars ORDER BY symbol, time ASC)
		TO '%s' (FORMAT PARQUET)
	`, w.outputPath))
	if err != nil {
		return fmt.Errorf("failed to export to parquet: %w", err)
	}

	return nil
}

func nullableFloat(o optional.Option[float64]) any {
	if o.IsNone() {
		return nil
	}

	return o.Unwrap()
}

func nullableDirection(o optional.Option[types.Direction]) any {
	if o.IsNone() {
		return nil
	}

	return int(o.Unwrap())
}

// Verify DuckDBWriter implements EnrichedBarWriter interface.
var _ EnrichedBarWriter = (*DuckDBWriter)(nil)
