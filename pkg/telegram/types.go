package telegram

import (
	"context"
)

// Bot interface abstracts telegram bot operations (for dependency injection)
type Bot interface {
	// Start starts the bot update loop (long polling)
	Start(ctx context.Context) error

	// Stop stops the bot
	Stop()

	// SetHandler sets the update handler
	SetHandler(handler func(Update))

	// SendMessage sends a text message
	SendMessage(chatID int64, text string) error

	// SendDocument sends a file attachment
	SendDocument(chatID int64, filename string, data []byte) error
}
