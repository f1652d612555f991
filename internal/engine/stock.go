package engine

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultHistoryDays is the look-back window of a stock report.
const DefaultHistoryDays = 30

// StockLine is one "name quantity" line of a pasted inventory.
type StockLine struct {
	Name     string
	Quantity int64
}

// ParseStockList reads lines of the form "<item name> <quantity>", splitting on the
// last run of whitespace so names may contain spaces. Blank lines are ignored and
// lines without a numeric quantity are returned as skipped.
func ParseStockList(text string) ([]StockLine, []SkippedRow) {
	var lines []StockLine
	var skipped []SkippedRow

	sc := bufio.NewScanner(strings.NewReader(text))
	row := -1
	for sc.Scan() {
		row++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		cut := strings.LastIndexFunc(raw, func(r rune) bool { return r == ' ' || r == '\t' })
		if cut < 0 {
			skipped = append(skipped, SkippedRow{Row: row, Name: raw, Reason: "missing quantity"})
			continue
		}
		name := strings.TrimSpace(raw[:cut])
		qty, err := strconv.ParseInt(strings.ReplaceAll(raw[cut+1:], ",", ""), 10, 64)
		if err != nil || name == "" {
			skipped = append(skipped, SkippedRow{Row: row, Name: raw, Reason: fmt.Sprintf("bad quantity %q", raw[cut+1:])})
			continue
		}
		lines = append(lines, StockLine{Name: name, Quantity: qty})
	}
	return lines, skipped
}

// DailyPrice is one day of market history, oldest first in any slice.
type DailyPrice struct {
	Average float64
	Highest float64
	Lowest  float64
}

// HistorySummary describes the recent price range of an item.
type HistorySummary struct {
	Current float64 // average of the most recent day
	Max     float64 // highest of the window
	Min     float64 // lowest of the window
	Avg     float64 // mean of daily averages
}

// SummarizeHistory summarises the last days entries of history. It reports false
// when there is no history.
func SummarizeHistory(history []DailyPrice, days int) (HistorySummary, bool) {
	if days > 0 && len(history) > days {
		history = history[len(history)-days:]
	}
	if len(history) == 0 {
		return HistorySummary{}, false
	}
	s := HistorySummary{
		Current: history[len(history)-1].Average,
		Max:     history[0].Highest,
		Min:     history[0].Lowest,
	}
	avgs := make([]float64, len(history))
	for i, d := range history {
		s.Max = math.Max(s.Max, d.Highest)
		s.Min = math.Min(s.Min, d.Lowest)
		avgs[i] = d.Average
	}
	s.Avg = mean(avgs)
	return s, true
}

// StockRow is one line of the stock valuation report.
type StockRow struct {
	Name     string
	Quantity int64
	HistorySummary
}

// DiffPercent is the current price relative to the window average, in percent.
func (r StockRow) DiffPercent() float64 {
	if r.Avg <= 0 {
		return 0
	}
	return (r.Current - r.Avg) / r.Avg * 100
}

// Indicator maps the current price to [-1, 1] around the window average, scaled by
// the wider of the relative min and max excursions.
func (r StockRow) Indicator() float64 {
	if r.Avg <= 0 {
		return 0
	}
	down := (r.Avg - r.Min) / r.Avg
	up := (r.Max - r.Avg) / r.Avg
	scale := math.Max(math.Max(down, up), 1e-6)
	pct := (r.Current - r.Avg) / r.Avg
	pct = math.Max(-scale, math.Min(scale, pct))
	return pct / scale
}

// Value is quantity times the current price.
func (r StockRow) Value() float64 {
	return float64(r.Quantity) * r.Current
}
