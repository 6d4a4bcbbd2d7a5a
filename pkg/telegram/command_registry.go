package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"journalbot/pkg/logger"
)

// CommandContext contains all data for command execution
type CommandContext struct {
	Ctx        context.Context
	TelegramID int64
	ChatID     int64
	MessageID  int
	FirstName  string
	Command    string
	Args       string
	RawMessage string
	Bot        Bot
}

// CommandHandler is a function that handles a command
type CommandHandler func(ctx *CommandContext) error

// CommandMiddleware wraps command handlers with additional logic
type CommandMiddleware func(next CommandHandler) CommandHandler

// CommandConfig defines a command registration
type CommandConfig struct {
	Name        string   // Primary command name (e.g., "buy")
	Aliases     []string // Alternative names (e.g., ["b"])
	Description string   // Help text
	Usage       string   // Usage example (e.g., "/buy AAPL 10 187.5")
	Handler     CommandHandler
	Hidden      bool   // Don't show in /help
	Category    string // Command category (e.g., "Journal", "Reports")
}

// CommandRegistry manages command registration and routing
type CommandRegistry struct {
	commands   map[string]*CommandConfig
	middleware []CommandMiddleware
	bot        Bot
	log        *logger.Logger
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry(bot Bot, log *logger.Logger) *CommandRegistry {
	return &CommandRegistry{
		commands:   make(map[string]*CommandConfig),
		middleware: make([]CommandMiddleware, 0),
		bot:        bot,
		log:        log.With("component", "command_registry"),
	}
}

// Register registers a command with the registry
func (cr *CommandRegistry) Register(config CommandConfig) {
	if config.Name == "" || config.Handler == nil {
		cr.log.Errorw("Cannot register invalid command", "command", config.Name)
		return
	}

	cr.commands[config.Name] = &config
	for _, alias := range config.Aliases {
		cr.commands[alias] = &config
	}

	cr.log.Debugw("Registered command",
		"name", config.Name,
		"aliases", config.Aliases,
		"category", config.Category,
	)
}

// Use adds global middleware (applied to all commands)
func (cr *CommandRegistry) Use(middleware CommandMiddleware) {
	cr.middleware = append(cr.middleware, middleware)
}

// Handle routes a parsed command message to its registered handler
func (cr *CommandRegistry) Handle(ctx context.Context, msg *Message) error {
	command := strings.ToLower(strings.TrimSpace(msg.Command))

	config, ok := cr.commands[command]
	if !ok {
		return cr.bot.SendMessage(msg.Chat.ID, fmt.Sprintf("Unknown command /%s. Try /help.", command))
	}

	cmdCtx := &CommandContext{
		Ctx:        ctx,
		TelegramID: msg.From.ID,
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		FirstName:  msg.From.FirstName,
		Command:    config.Name,
		Args:       msg.Arguments,
		RawMessage: msg.Text,
		Bot:        cr.bot,
	}

	handler := config.Handler
	for i := len(cr.middleware) - 1; i >= 0; i-- {
		handler = cr.middleware[i](handler)
	}

	return handler(cmdCtx)
}

// HelpText renders the command list grouped by category, hidden commands
// excluded.
func (cr *CommandRegistry) HelpText() string {
	byCategory := make(map[string][]*CommandConfig)
	seen := make(map[string]bool)
	for _, config := range cr.commands {
		if config.Hidden || seen[config.Name] {
			continue
		}
		seen[config.Name] = true
		byCategory[config.Category] = append(byCategory[config.Category], config)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	for _, category := range categories {
		commands := byCategory[category]
		sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })

		fmt.Fprintf(&b, "%s:\n", category)
		for _, config := range commands {
			usage := config.Usage
			if usage == "" {
				usage = "/" + config.Name
			}
			fmt.Fprintf(&b, "  %s - %s\n", usage, config.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
