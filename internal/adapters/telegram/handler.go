package telegram

import (
	"context"

	"journalbot/pkg/logger"
	"journalbot/pkg/telegram"
)

// Handler routes incoming Telegram updates to registered commands
type Handler struct {
	bot      telegram.Bot
	registry *telegram.CommandRegistry
	log      *logger.Logger
}

// NewHandler creates a new telegram update handler
func NewHandler(bot telegram.Bot, registry *telegram.CommandRegistry, log *logger.Logger) *Handler {
	return &Handler{
		bot:      bot,
		registry: registry,
		log:      log.With("component", "telegram_handler"),
	}
}

// HandleUpdate processes one incoming Telegram update. This is the entry
// point wired into the bot client.
func (h *Handler) HandleUpdate(update telegram.Update) {
	if !update.HasMessage() {
		return
	}

	msg := update.Message
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}

	if !msg.IsCommand {
		// The journal only speaks commands; nudge plain-text senders.
		if err := h.bot.SendMessage(msg.Chat.ID, "I only understand commands. Try /help."); err != nil {
			h.log.Errorw("Failed to send hint", "chat_id", msg.Chat.ID, "error", err)
		}
		return
	}

	ctx := context.Background()
	if err := h.registry.Handle(ctx, msg); err != nil {
		h.log.Errorw("Failed to handle command",
			"command", msg.Command,
			"telegram_id", msg.From.ID,
			"error", err,
		)
	}
}
