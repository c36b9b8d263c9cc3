package mocks

import (
	"testing"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)

	if len(bars) != 100 {
		t.Errorf("expected 100 bars, got %d", len(bars))
	}

	// Verify bars are in chronological order
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Errorf("bars not in chronological order at index %d", i)
		}
	}

	// Verify symbol is set correctly
	for i, b := range bars {
		if b.Symbol != config.Symbol {
			t.Errorf("expected symbol %s at index %d, got %s", config.Symbol, i, b.Symbol)
		}
	}

	// Verify OHLC values are positive
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			t.Errorf("invalid OHLC values at index %d: O=%f H=%f L=%f C=%f",
				i, b.Open, b.High, b.Low, b.Close)
		}
	}

	// Verify High >= Low
	for i, b := range bars {
		if b.High < b.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, b.High, b.Low)
		}
	}

	// Verify time intervals
	expectedInterval := config.Interval
	for i := 1; i < len(bars); i++ {
		actualInterval := bars[i].Time.Sub(bars[i-1].Time)
		if actualInterval != expectedInterval {
			t.Errorf("unexpected interval at index %d: expected %v, got %v",
				i, expectedInterval, actualInterval)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce same results
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(42)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	for i := range bars1 {
		if bars1[i].Close != bars2[i].Close {
			t.Errorf("bars not reproducible at index %d: got %f and %f",
				i, bars1[i].Close, bars2[i].Close)
		}
	}
}

func TestDataGenerator_MultiSymbol(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 20

	bars := gen.GenerateMultiSymbol([]string{"SPY", "QQQ"}, config)

	if len(bars) != 40 {
		t.Errorf("expected 40 bars, got %d", len(bars))
	}

	symbols := make(map[string]int)
	for _, b := range bars {
		symbols[b.Symbol]++
	}

	if symbols["SPY"] != 20 || symbols["QQQ"] != 20 {
		t.Errorf("unexpected per-symbol counts: %v", symbols)
	}
}
