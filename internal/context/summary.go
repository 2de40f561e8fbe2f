package context

import (
	"strings"

	"github.com/stupiduntilnot/botik/internal/session"
)

const (
	summarizerDirective   = "You are a conversation summarizer."
	summarizerInstruction = "Summarize the following conversation briefly, keeping only the essential facts:\n\n"
)

// SummaryPrompt builds the fixed two-message summarization instruction with
// the history embedded as plain text.
func SummaryPrompt(history session.History) []Message {
	return []Message{
		{Role: string(session.RoleSystem), Content: summarizerDirective},
		{Role: string(session.RoleUser), Content: summarizerInstruction + Transcript(history)},
	}
}

// Transcript renders a history as one "role: content" line per turn.
func Transcript(history session.History) string {
	var b strings.Builder
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
