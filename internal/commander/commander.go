package commander

import (
	"context"
	"unicode/utf16"
)

// Chat actions understood by SendChatAction.
const ActionTyping = "typing"

// Commander is the message transport used by the bot: a source of updates
// and a sink for replies.
type Commander interface {
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
	// SendMessage sends text and returns the id of the created message.
	SendMessage(chatID int64, text string) (int64, error)
	EditMessageText(chatID, messageID int64, text string) error
	SendChatAction(chatID int64, action string) error
	// GetMe returns the bot's own account.
	GetMe(ctx context.Context) (User, error)
}

// Update represents an incoming update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a source message.
type Message struct {
	MessageID int64   `json:"message_id"`
	From      *User   `json:"from,omitempty"`
	Chat      Chat    `json:"chat"`
	Text      *string `json:"text,omitempty"`
	Date      int64   `json:"date"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// SenderID returns the id of the user who sent m, falling back to the chat
// id for messages without a sender (channel posts).
func (m *Message) SenderID() int64 {
	if m.From != nil {
		return m.From.ID
	}
	return m.Chat.ID
}

// MaxMessageUTF16 is the Telegram message length limit, counted in UTF-16
// code units.
const MaxMessageUTF16 = 4096

// SplitText cuts text into chunks of at most limit UTF-16 code units without
// splitting a rune. A chunk ends after its last newline when that newline is
// past the middle of the chunk.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageUTF16
	}
	var chunks []string
	for text != "" {
		units, cut, lastNL := 0, len(text), -1
		for i, r := range text {
			w := utf16.RuneLen(r)
			if w < 0 {
				w = 1
			}
			if units+w > limit {
				cut = i
				break
			}
			units += w
			if r == '\n' && units > limit/2 {
				lastNL = i + 1
			}
		}
		if cut < len(text) && lastNL > 0 {
			cut = lastNL
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return chunks
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}
