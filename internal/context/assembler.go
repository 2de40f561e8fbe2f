package context

import (
	"strings"

	"github.com/stupiduntilnot/botik/internal/session"
)

// StandardAssembler prepends an optional system prompt to a history.
type StandardAssembler struct{}

// Assemble builds the final message list: system (if any) + history.
func (a *StandardAssembler) Assemble(system string, history session.History) []Message {
	messages := make([]Message, 0, 1+len(history))
	if strings.TrimSpace(system) != "" {
		messages = append(messages, Message{Role: string(session.RoleSystem), Content: system})
	}
	for _, t := range history {
		messages = append(messages, Message{Role: string(t.Role), Content: t.Content})
	}
	return messages
}
