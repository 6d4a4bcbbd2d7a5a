package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journalbot/pkg/logger"
)

// fakeBot records outbound messages for assertions.
type fakeBot struct {
	messages  []string
	documents []string
}

func (b *fakeBot) Start(ctx context.Context) error { return nil }
func (b *fakeBot) Stop() {}
func (b *fakeBot) SetHandler(handler func(Update)) {}
func (b *fakeBot) SendMessage(_ int64, text string) error {
	b.messages = append(b.messages, text)
	return nil
}
func (b *fakeBot) SendDocument(_ int64, filename string, _ []byte) error {
	b.documents = append(b.documents, filename)
	return nil
}

func commandMessage(text string) *Message {
	msg := &Message{
		MessageID: 77,
		From:      &User{ID: 42, FirstName: "Dana"},
		Chat:      &Chat{ID: 100, Type: "private"},
		Text:      text,
	}
	msg.ParseCommand()
	return msg
}

func TestCommandRegistry_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("routes to handler with populated context", func(t *testing.T) {
		bot := &fakeBot{}
		registry := NewCommandRegistry(bot, logger.Get())

		var got *CommandContext
		registry.Register(CommandConfig{
			Name: "buy",
			Handler: func(cmdCtx *CommandContext) error {
				got = cmdCtx
				return nil
			},
		})

		err := registry.Handle(ctx, commandMessage("/buy AAPL 10 187.5"))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(42), got.TelegramID)
		assert.Equal(t, int64(100), got.ChatID)
		assert.Equal(t, 77, got.MessageID)
		assert.Equal(t, "Dana", got.FirstName)
		assert.Equal(t, "buy", got.Command)
		assert.Equal(t, "AAPL 10 187.5", got.Args)
	})

	t.Run("aliases resolve to the primary name", func(t *testing.T) {
		bot := &fakeBot{}
		registry := NewCommandRegistry(bot, logger.Get())

		var got string
		registry.Register(CommandConfig{
			Name:    "position",
			Aliases: []string{"pos"},
			Handler: func(cmdCtx *CommandContext) error {
				got = cmdCtx.Command
				return nil
			},
		})

		require.NoError(t, registry.Handle(ctx, commandMessage("/pos AAPL")))
		assert.Equal(t, "position", got)
	})

	t.Run("unknown command answers with a hint", func(t *testing.T) {
		bot := &fakeBot{}
		registry := NewCommandRegistry(bot, logger.Get())

		err := registry.Handle(ctx, commandMessage("/bogus"))
		require.NoError(t, err)
		require.Len(t, bot.messages, 1)
		assert.Contains(t, bot.messages[0], "/bogus")
		assert.Contains(t, bot.messages[0], "/help")
	})

	t.Run("middleware wraps in registration order", func(t *testing.T) {
		bot := &fakeBot{}
		registry := NewCommandRegistry(bot, logger.Get())

		var order []string
		mw := func(name string) CommandMiddleware {
			return func(next CommandHandler) CommandHandler {
				return func(cmdCtx *CommandContext) error {
					order = append(order, name)
					return next(cmdCtx)
				}
			}
		}
		registry.Use(mw("outer"))
		registry.Use(mw("inner"))
		registry.Register(CommandConfig{
			Name: "ping",
			Handler: func(cmdCtx *CommandContext) error {
				order = append(order, "handler")
				return nil
			},
		})

		require.NoError(t, registry.Handle(ctx, commandMessage("/ping")))
		assert.Equal(t, []string{"outer", "inner", "handler"}, order)
	})
}

func TestCommandRegistry_HelpText(t *testing.T) {
	bot := &fakeBot{}
	registry := NewCommandRegistry(bot, logger.Get())
	noop := func(cmdCtx *CommandContext) error { return nil }

	registry.Register(CommandConfig{
		Name: "buy", Usage: "/buy AAPL 10 187.5", Description: "Record a buy",
		Category: "Journal", Handler: noop,
	})
	registry.Register(CommandConfig{
		Name: "report", Description: "Realized P&L report",
		Category: "Reports", Handler: noop,
	})
	registry.Register(CommandConfig{
		Name: "start", Hidden: true, Handler: noop,
	})

	help := registry.HelpText()
	assert.Contains(t, help, "Journal:")
	assert.Contains(t, help, "/buy AAPL 10 187.5")
	assert.Contains(t, help, "Reports:")
	assert.Contains(t, help, "/report")
	assert.NotContains(t, help, "/start")
}

func TestRateLimitMiddleware(t *testing.T) {
	bot := &fakeBot{}
	registry := NewCommandRegistry(bot, logger.Get())
	registry.Use(RateLimitMiddleware(2, logger.Get()))

	calls := 0
	registry.Register(CommandConfig{
		Name: "ping",
		Handler: func(cmdCtx *CommandContext) error {
			calls++
			return nil
		},
	})

	for i := 0; i < 4; i++ {
		require.NoError(t, registry.Handle(context.Background(), commandMessage("/ping")))
	}

	assert.Equal(t, 2, calls, "excess calls inside the window are dropped")
	assert.Len(t, bot.messages, 2, "dropped calls get a throttle reply")
}
