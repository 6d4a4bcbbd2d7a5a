package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"journalbot/internal/domain/market"
	"journalbot/internal/domain/position"
	"journalbot/internal/domain/trade"
	"journalbot/internal/metrics"
	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
)

// Generator computes read-only aggregations over the trade event log. A
// realized delta is attributed to the event that caused it, so deltas inside
// the window require replaying each instrument's full history for the
// pre-window cost basis.
type Generator struct {
	store  trade.Store
	prices market.PriceSource
	log    *logger.Logger
}

// NewGenerator constructs a report generator. prices may be nil; unrealized
// figures are then reported unavailable.
func NewGenerator(store trade.Store, prices market.PriceSource) *Generator {
	return &Generator{
		store:  store,
		prices: prices,
		log:    logger.Get().With("component", "report_generator"),
	}
}

// Summarize aggregates realized P&L over the window. A window containing no
// trades yields a report with zero totals and an empty per-instrument map.
func (g *Generator) Summarize(ctx context.Context, userID int64, window Window) (*JournalReport, error) {
	if userID == 0 {
		return nil, errors.ErrInvalidInput
	}
	started := time.Now()
	defer func() {
		metrics.ReportDuration.Observe(time.Since(started).Seconds())
	}()

	rep := &JournalReport{
		UserID:           userID,
		WindowStart:      window.Start,
		WindowEnd:        window.End,
		TotalRealizedPnL: decimal.Zero,
		PerInstrument:    make(map[string]decimal.Decimal),
		UnrealizedPnL:    decimal.Zero,
		HasUnrealized:    g.prices != nil,
	}

	instruments, err := g.store.Instruments(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list instruments")
	}

	for _, instrument := range instruments {
		events, err := g.store.History(ctx, userID, instrument)
		if err != nil {
			return nil, errors.Wrap(err, "load event history")
		}

		pos := position.New(userID, instrument)
		subtotal := decimal.Zero
		inWindow := false

		for i := range events {
			delta := pos.Apply(&events[i])
			if !window.Contains(events[i].Timestamp) {
				continue
			}
			inWindow = true
			subtotal = subtotal.Add(delta)
			rep.TotalRealizedPnL = rep.TotalRealizedPnL.Add(delta)
			switch delta.Sign() {
			case 1:
				rep.WinCount++
			case -1:
				rep.LossCount++
			}
		}

		if inWindow {
			rep.PerInstrument[instrument] = subtotal
		}

		if rep.HasUnrealized && !pos.IsFlat() {
			price, err := g.prices.LastPrice(ctx, instrument)
			if err != nil {
				if !errors.Is(err, errors.ErrPriceUnavailable) {
					g.log.Warnw("price lookup failed",
						"instrument", instrument,
						"error", err,
					)
				}
				// Never guess a price: one unpriced open instrument makes
				// the unrealized total meaningless.
				rep.HasUnrealized = false
				rep.UnrealizedPnL = decimal.Zero
				continue
			}
			rep.UnrealizedPnL = rep.UnrealizedPnL.Add(price.Sub(pos.AverageCost).Mul(pos.NetQuantity))
		}
	}

	return rep, nil
}

// Stats computes per-user trade statistics over realizing events inside the
// window: counts, win rate, average win and loss, profit factor and the best
// and worst single-trade delta.
func (g *Generator) Stats(ctx context.Context, userID int64, window Window) (*Analytics, error) {
	if userID == 0 {
		return nil, errors.ErrInvalidInput
	}

	instruments, err := g.store.Instruments(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list instruments")
	}

	stats := &Analytics{
		WinRate:      decimal.Zero,
		AvgWin:       decimal.Zero,
		AvgLoss:      decimal.Zero,
		ProfitFactor: decimal.Zero,
		BestTrade:    decimal.Zero,
		WorstTrade:   decimal.Zero,
	}
	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	first := true

	for _, instrument := range instruments {
		events, err := g.store.History(ctx, userID, instrument)
		if err != nil {
			return nil, errors.Wrap(err, "load event history")
		}

		pos := position.New(userID, instrument)
		for i := range events {
			event := &events[i]
			closing := !pos.IsFlat() && pos.NetQuantity.Sign() != event.SignedQuantity().Sign()
			delta := pos.Apply(event)
			if !closing || !window.Contains(event.Timestamp) {
				continue
			}

			stats.TotalTrades++
			switch delta.Sign() {
			case 1:
				stats.WinningTrades++
				grossWin = grossWin.Add(delta)
			case -1:
				stats.LosingTrades++
				grossLoss = grossLoss.Add(delta.Abs())
			}

			if first || delta.GreaterThan(stats.BestTrade) {
				stats.BestTrade = delta
			}
			if first || delta.LessThan(stats.WorstTrade) {
				stats.WorstTrade = delta
			}
			first = false
		}
	}

	if stats.TotalTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = grossWin.Div(decimal.NewFromInt(int64(stats.WinningTrades)))
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = grossLoss.Div(decimal.NewFromInt(int64(stats.LosingTrades))).Neg()
	}
	if !grossLoss.IsZero() {
		stats.ProfitFactor = grossWin.Div(grossLoss)
	}

	return stats, nil
}
