package telegram

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"journalbot/internal/domain/trade"
	"journalbot/pkg/errors"
	"journalbot/pkg/telegram"
)

// eventNamespace seeds deterministic event IDs derived from the Telegram
// (chat, message) pair. A redelivered update therefore maps to the same
// event ID and lands on the store's idempotent append path.
var eventNamespace = uuid.MustParse("9b1c8f52-6c07-4a3d-9a6e-5b2f9d1c4e70")

// HandleBuy handles /buy INSTRUMENT QTY PRICE
func (c *JournalCommands) HandleBuy(ctx *telegram.CommandContext) error {
	return c.recordTrade(ctx, trade.SideBuy)
}

// HandleSell handles /sell INSTRUMENT QTY PRICE
func (c *JournalCommands) HandleSell(ctx *telegram.CommandContext) error {
	return c.recordTrade(ctx, trade.SideSell)
}

func (c *JournalCommands) recordTrade(ctx *telegram.CommandContext, side trade.Side) error {
	event, err := c.parseTradeArgs(ctx, side)
	if err != nil {
		return ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("❌ %v\nUsage: /%s INSTRUMENT QTY PRICE", err, strings.ToLower(side.String())))
	}

	result, err := c.trades.Record(ctx.Ctx, event)
	if err != nil {
		return c.replyError(ctx, err)
	}

	pos, err := c.ledger.Get(ctx.Ctx, event.UserID, event.Instrument)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/trade_recorded", map[string]interface{}{
		"Side":          event.Side.String(),
		"Instrument":    event.Instrument,
		"Quantity":      event.Quantity,
		"Price":         event.Price,
		"Duplicate":     !result.Inserted,
		"RealizedDelta": result.RealizedDelta,
		"NetQuantity":   pos.NetQuantity,
		"AverageCost":   pos.AverageCost,
	})
	if err != nil {
		return errors.Wrap(err, "render trade recorded template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, msg)
}

// parseTradeArgs parses "INSTRUMENT QTY PRICE" and builds the event with a
// deterministic ID.
func (c *JournalCommands) parseTradeArgs(ctx *telegram.CommandContext, side trade.Side) (*trade.Event, error) {
	fields := strings.Fields(ctx.Args)
	if len(fields) != 3 {
		return nil, errors.New("expected instrument, quantity and price")
	}

	instrument := strings.ToUpper(fields[0])

	quantity, err := decimal.NewFromString(fields[1])
	if err != nil {
		return nil, errors.Newf("quantity %q is not a number", fields[1])
	}
	price, err := decimal.NewFromString(fields[2])
	if err != nil {
		return nil, errors.Newf("price %q is not a number", fields[2])
	}

	id := uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%d:%d", ctx.ChatID, ctx.MessageID)))

	return &trade.Event{
		ID:         id,
		UserID:     ctx.TelegramID,
		Instrument: instrument,
		Side:       side,
		Quantity:   quantity,
		Price:      price,
	}, nil
}

// HandleRebuild handles /rebuild INSTRUMENT: replays the pair's history,
// discarding any cached snapshot.
func (c *JournalCommands) HandleRebuild(ctx *telegram.CommandContext) error {
	instrument := strings.ToUpper(strings.TrimSpace(ctx.Args))
	if instrument == "" {
		return ctx.Bot.SendMessage(ctx.ChatID, "❌ Usage: /rebuild INSTRUMENT")
	}

	pos, err := c.ledger.Rebuild(ctx.Ctx, ctx.TelegramID, instrument)
	if err != nil {
		return c.replyError(ctx, err)
	}

	msg, err := c.templates.Render("telegram/position", pos)
	if err != nil {
		return errors.Wrap(err, "render position template")
	}
	return ctx.Bot.SendMessage(ctx.ChatID, "♻️ Rebuilt from the journal.\n"+msg)
}

// replyError maps domain errors onto user-facing messages. Unexpected
// errors are reported generically and propagated for logging.
func (c *JournalCommands) replyError(ctx *telegram.CommandContext, err error) error {
	var validation *errors.ValidationError
	switch {
	case errors.Is(err, errors.ErrOutOfOrder):
		_ = ctx.Bot.SendMessage(ctx.ChatID, "❌ That trade is older than your latest recorded one. The journal is append-only; record an offsetting trade instead.")
		return nil
	case errors.As(err, &validation):
		_ = ctx.Bot.SendMessage(ctx.ChatID, fmt.Sprintf("❌ %s: %s", validation.Field, validation.Message))
		return nil
	case errors.Is(err, errors.ErrInvalidInput):
		_ = ctx.Bot.SendMessage(ctx.ChatID, "❌ Invalid input. Check /help for usage.")
		return nil
	default:
		_ = ctx.Bot.SendMessage(ctx.ChatID, "❌ Something went wrong. Please try again.")
		return err
	}
}
