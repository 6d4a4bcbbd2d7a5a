package telegram

import (
	"strings"
)

// Update represents an incoming Telegram update (abstraction from tgbotapi)
type Update struct {
	UpdateID int `json:"update_id"`

	// Message is present if this is a regular message
	Message *Message `json:"message,omitempty"`
}

// Message represents a Telegram message
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`

	// Computed by ParseCommand, not from JSON
	IsCommand bool   `json:"-"`
	Command   string `json:"-"`
	Arguments string `json:"-"`
}

// User represents a Telegram user
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Chat represents a Telegram chat
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"` // "private", "group", "supergroup", "channel"
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
}

// HasMessage checks if update contains a message
func (u *Update) HasMessage() bool {
	return u.Message != nil
}

// ParseCommand populates IsCommand, Command and Arguments from the message
// text. Format: /command args, optionally /command@botname args.
func (m *Message) ParseCommand() {
	if m == nil || m.Text == "" || m.Text[0] != '/' {
		return
	}

	m.IsCommand = true

	command, args, _ := strings.Cut(m.Text[1:], " ")
	if at := strings.IndexByte(command, '@'); at != -1 {
		command = command[:at]
	}

	m.Command = strings.ToLower(command)
	m.Arguments = strings.TrimSpace(args)
}
