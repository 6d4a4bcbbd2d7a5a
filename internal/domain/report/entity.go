package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Window is an inclusive time range a report covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window, bounds included.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// LastDays returns a window covering the past n days up to now.
func LastDays(n int) Window {
	now := time.Now().UTC()
	return Window{Start: now.AddDate(0, 0, -n), End: now}
}

// AllTime returns a window covering the whole journal history.
func AllTime() Window {
	return Window{Start: time.Unix(0, 0).UTC(), End: time.Now().UTC()}
}

// JournalReport summarizes realized performance over a window. It is a value
// object computed on demand, never persisted.
type JournalReport struct {
	UserID      int64
	WindowStart time.Time
	WindowEnd   time.Time

	TotalRealizedPnL decimal.Decimal
	WinCount         int
	LossCount        int

	// PerInstrument maps instrument to the sum of its realized deltas
	// in-window.
	PerInstrument map[string]decimal.Decimal

	// Unrealized mark-to-market P&L over open positions. Only meaningful
	// when HasUnrealized is true, i.e. a price source was available for
	// every open instrument.
	UnrealizedPnL decimal.Decimal
	HasUnrealized bool
}

// Analytics carries per-user statistics over closed (realizing) trades,
// computed alongside the report.
type Analytics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       decimal.Decimal
	AvgWin        decimal.Decimal
	AvgLoss       decimal.Decimal
	ProfitFactor  decimal.Decimal
	BestTrade     decimal.Decimal
	WorstTrade    decimal.Decimal
}
