package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"journalbot/internal/domain/position"
	"journalbot/internal/domain/report"
	"journalbot/internal/domain/trade"
	"journalbot/internal/export"
	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
	"journalbot/pkg/telegram"
	"journalbot/pkg/templates"
)

// JournalCommands implements the bot's command handlers over the journal
// services. The adapter stays thin: parse arguments, call the engine,
// render the reply.
type JournalCommands struct {
	trades    *trade.Service
	ledger    *position.Ledger
	reports   *report.Generator
	exporter  *export.CSVExporter
	templates *templates.Registry
	log       *logger.Logger
}

// NewJournalCommands creates the command handler set
func NewJournalCommands(
	trades *trade.Service,
	ledger *position.Ledger,
	reports *report.Generator,
	exporter *export.CSVExporter,
	tmpl *templates.Registry,
	log *logger.Logger,
) *JournalCommands {
	if tmpl == nil {
		tmpl = templates.Get()
	}
	return &JournalCommands{
		trades:    trades,
		ledger:    ledger,
		reports:   reports,
		exporter:  exporter,
		templates: tmpl,
		log:       log.With("component", "journal_commands"),
	}
}

// Register wires every journal command into the registry
func (c *JournalCommands) Register(registry *telegram.CommandRegistry) {
	registry.Register(telegram.CommandConfig{
		Name: "start", Hidden: true, Description: "Welcome message",
		Handler: c.HandleStart,
	})
	registry.Register(telegram.CommandConfig{
		Name: "help", Hidden: true, Description: "Command list",
		Handler: func(ctx *telegram.CommandContext) error {
			return ctx.Bot.SendMessage(ctx.ChatID, registry.HelpText())
		},
	})
	registry.Register(telegram.CommandConfig{
		Name: "buy", Aliases: []string{"b"}, Category: "Journal",
		Usage: "/buy AAPL 10 187.5", Description: "Record a buy fill",
		Handler: c.HandleBuy,
	})
	registry.Register(telegram.CommandConfig{
		Name: "sell", Aliases: []string{"s"}, Category: "Journal",
		Usage: "/sell AAPL 10 192", Description: "Record a sell fill",
		Handler: c.HandleSell,
	})
	registry.Register(telegram.CommandConfig{
		Name: "position", Aliases: []string{"pos"}, Category: "Positions",
		Usage: "/position AAPL", Description: "Open position and cost basis",
		Handler: c.HandlePosition,
	})
	registry.Register(telegram.CommandConfig{
		Name: "positions", Category: "Positions",
		Description: "All open positions",
		Handler:     c.HandlePositions,
	})
	registry.Register(telegram.CommandConfig{
		Name: "rebuild", Category: "Positions",
		Usage: "/rebuild AAPL", Description: "Recompute a position from the journal",
		Handler: c.HandleRebuild,
	})
	registry.Register(telegram.CommandConfig{
		Name: "report", Aliases: []string{"r"}, Category: "Reports",
		Usage: "/report 7d", Description: "Realized P&L over a window (7d, 30d, all)",
		Handler: c.HandleReport,
	})
	registry.Register(telegram.CommandConfig{
		Name: "stats", Category: "Reports",
		Usage: "/stats 30d", Description: "Win rate and trade statistics",
		Handler: c.HandleStats,
	})
	registry.Register(telegram.CommandConfig{
		Name: "export", Category: "Reports",
		Description: "Download your trade history as CSV",
		Handler:     c.HandleExport,
	})
}

// HandleStart handles /start
func (c *JournalCommands) HandleStart(ctx *telegram.CommandContext) error {
	name := ctx.FirstName
	if name == "" {
		name = "trader"
	}
	msg, err := c.templates.Render("telegram/welcome", map[string]interface{}{
		"FirstName": name,
	})
	if err != nil {
		return errors.Wrap(err, "render welcome template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// HandlePosition handles /position INSTRUMENT
func (c *JournalCommands) HandlePosition(ctx *telegram.CommandContext) error {
	instrument := strings.ToUpper(strings.TrimSpace(ctx.Args))
	if instrument == "" {
		return ctx.Bot.SendMessage(ctx.ChatID, "❌ Usage: /position INSTRUMENT")
	}

	pos, err := c.ledger.Get(ctx.Ctx, ctx.TelegramID, instrument)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/position", pos)
	if err != nil {
		return errors.Wrap(err, "render position template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// HandlePositions handles /positions
func (c *JournalCommands) HandlePositions(ctx *telegram.CommandContext) error {
	positions, err := c.ledger.All(ctx.Ctx, ctx.TelegramID)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/positions", map[string]interface{}{
		"Positions": positions,
	})
	if err != nil {
		return errors.Wrap(err, "render positions template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// HandleReport handles /report [WINDOW]
func (c *JournalCommands) HandleReport(ctx *telegram.CommandContext) error {
	window, label, err := parseWindow(ctx.Args)
	if err != nil {
		return ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("❌ %v", err))
	}

	rep, err := c.reports.Summarize(ctx.Ctx, ctx.TelegramID, window)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/report", map[string]interface{}{
		"WindowLabel":      label,
		"TotalRealizedPnL": rep.TotalRealizedPnL,
		"WinCount":         rep.WinCount,
		"LossCount":        rep.LossCount,
		"HasUnrealized":    rep.HasUnrealized,
		"UnrealizedPnL":    rep.UnrealizedPnL,
		"PerInstrument":    rep.PerInstrument,
	})
	if err != nil {
		return errors.Wrap(err, "render report template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// HandleStats handles /stats [WINDOW]
func (c *JournalCommands) HandleStats(ctx *telegram.CommandContext) error {
	window, label, err := parseWindow(ctx.Args)
	if err != nil {
		return ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("❌ %v", err))
	}

	stats, err := c.reports.Stats(ctx.Ctx, ctx.TelegramID, window)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/stats", map[string]interface{}{
		"WindowLabel":   label,
		"TotalTrades":   stats.TotalTrades,
		"WinningTrades": stats.WinningTrades,
		"LosingTrades":  stats.LosingTrades,
		"WinRate":       stats.WinRate,
		"AvgWin":        stats.AvgWin,
		"AvgLoss":       stats.AvgLoss,
		"ProfitFactor":  stats.ProfitFactor,
		"BestTrade":     stats.BestTrade,
		"WorstTrade":    stats.WorstTrade,
	})
	if err != nil {
		return errors.Wrap(err, "render stats template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// HandleExport handles /export
func (c *JournalCommands) HandleExport(ctx *telegram.CommandContext) error {
	data, filename, err := c.exporter.Export(ctx.Ctx, ctx.TelegramID)
	if err != nil {
		return c.replyError(ctx, err)
	}
	return ctx.Bot.SendDocument(ctx.ChatID, filename, data)
}

// parseWindow maps a window argument onto a report window. Supported: empty
// (defaults to 30d), "all", and "<n>d".
func parseWindow(arg string) (report.Window, string, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	switch {
	case arg == "":
		return report.LastDays(30), "(last 30 days)", nil
	case arg == "all":
		return report.AllTime(), "(all time)", nil
	case strings.HasSuffix(arg, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(arg, "d"))
		if err != nil || days <= 0 {
			return report.Window{}, "", errors.Newf("bad window %q, use e.g. 7d, 30d or all", arg)
		}
		return report.LastDays(days), fmt.Sprintf("(last %d days)", days), nil
	default:
		return report.Window{}, "", errors.Newf("bad window %q, use e.g. 7d, 30d or all", arg)
	}
}
