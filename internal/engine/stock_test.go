package engine

import (
	"math"
	"testing"
)

func TestParseStockList(t *testing.T) {
	text := `
Mexallon    409
Pyerite 6139
Compressed Dark Glitter	12
Nitrogen Fuel Block 1,200
Broken line
Tritanium lots
`
	lines, skipped := ParseStockList(text)
	want := []StockLine{
		{"Mexallon", 409},
		{"Pyerite", 6139},
		{"Compressed Dark Glitter", 12},
		{"Nitrogen Fuel Block", 1200},
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %+v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %+v", skipped)
	}
}

func TestSummarizeHistory(t *testing.T) {
	var history []DailyPrice
	for i := 0; i < 40; i++ {
		v := float64(i)
		history = append(history, DailyPrice{Average: v, Highest: v + 1, Lowest: v - 1})
	}
	s, ok := SummarizeHistory(history, 30)
	if !ok {
		t.Fatal("expected summary")
	}
	// window is days 10..39
	if s.Current != 39 || s.Max != 40 || s.Min != 9 || s.Avg != 24.5 {
		t.Errorf("summary = %+v", s)
	}

	if _, ok := SummarizeHistory(nil, 30); ok {
		t.Error("empty history should report false")
	}
}

func TestStockRow_DiffAndIndicator(t *testing.T) {
	r := StockRow{Name: "x", Quantity: 10, HistorySummary: HistorySummary{Current: 110, Avg: 100, Min: 80, Max: 105}}
	if got := r.DiffPercent(); math.Abs(got-10) > 1e-9 {
		t.Errorf("DiffPercent = %v, want 10", got)
	}
	// scale = max(0.2, 0.05) = 0.2; pct = 0.1 -> 0.5
	if got := r.Indicator(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Indicator = %v, want 0.5", got)
	}
	if got := r.Value(); got != 1100 {
		t.Errorf("Value = %v, want 1100", got)
	}

	below := StockRow{HistorySummary: HistorySummary{Current: 10, Avg: 100, Min: 80, Max: 105}}
	if got := below.Indicator(); got != -1 {
		t.Errorf("clamped Indicator = %v, want -1", got)
	}

	zero := StockRow{}
	if zero.DiffPercent() != 0 || zero.Indicator() != 0 {
		t.Error("zero average should give zero diff and indicator")
	}
}
