package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"journalbot/pkg/errors"
	"journalbot/pkg/logger"
	"journalbot/pkg/telegram"
)

// Bot implements telegram.Bot on top of the Bot API with long polling and a
// client-side rate limiter.
type Bot struct {
	api         *tgbotapi.BotAPI
	log         *logger.Logger
	mu          sync.RWMutex
	running     bool
	handler     func(telegram.Update)
	rateLimiter *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	Timeout        int // Update timeout in seconds
	HTTPTimeout    time.Duration
	RateLimitBurst int // Rate limiter burst (default: 30)
	RateLimitRate  int // Rate limiter per second (default: 20)
}

// NewBot creates a new Telegram bot instance
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30 // Telegram allows bursts
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20 // Conservative: Telegram limit is 30 msg/sec
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:         api,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
	}, nil
}

// SetHandler registers a handler for incoming updates
func (b *Bot) SetHandler(handler func(telegram.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Start begins long polling for updates until the context is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	b.log.Infow("Starting Telegram bot in polling mode...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.log.Infow("Telegram bot stopping (context cancelled)")
			b.Stop()
			return nil

		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.api.StopReceivingUpdates()
	b.running = false
	b.log.Infow("Telegram bot stopped")
}

// handleUpdate converts and dispatches a single update
func (b *Bot) handleUpdate(update tgbotapi.Update) {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()

	if handler == nil {
		b.log.Debugw("Received update with no handler registered",
			"update_id", update.UpdateID,
		)
		return
	}

	handler(convertUpdate(update))
}

// SendMessage sends a text message to a chat
func (b *Bot) SendMessage(chatID int64, text string) error {
	if err := b.rateLimiter.Wait(context.Background()); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("Failed to send message",
			"chat_id", chatID,
			"error", err,
		)
		return errors.Wrap(err, "failed to send message")
	}
	return nil
}

// SendDocument sends a file attachment to a chat
func (b *Bot) SendDocument(chatID int64, filename string, data []byte) error {
	if err := b.rateLimiter.Wait(context.Background()); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := b.api.Send(doc); err != nil {
		b.log.Errorw("Failed to send document",
			"chat_id", chatID,
			"filename", filename,
			"error", err,
		)
		return errors.Wrap(err, "failed to send document")
	}
	return nil
}

// convertUpdate maps a tgbotapi update onto the transport-neutral type
func convertUpdate(update tgbotapi.Update) telegram.Update {
	converted := telegram.Update{UpdateID: update.UpdateID}

	if update.Message != nil {
		msg := &telegram.Message{
			MessageID: update.Message.MessageID,
			Text:      update.Message.Text,
		}
		if update.Message.From != nil {
			msg.From = &telegram.User{
				ID:        update.Message.From.ID,
				FirstName: update.Message.From.FirstName,
				LastName:  update.Message.From.LastName,
				Username:  update.Message.From.UserName,
				IsBot:     update.Message.From.IsBot,
			}
		}
		if update.Message.Chat != nil {
			msg.Chat = &telegram.Chat{
				ID:       update.Message.Chat.ID,
				Type:     update.Message.Chat.Type,
				Title:    update.Message.Chat.Title,
				Username: update.Message.Chat.UserName,
			}
		}
		msg.ParseCommand()
		converted.Message = msg
	}

	return converted
}
