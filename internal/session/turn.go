// Package session owns per-user conversation history: the Turn and History
// model, the Store contract, the History Accumulator and the Controller that
// runs one conversational turn against the completion and summarization
// gateways.
package session

import (
	"strconv"
	"strings"
)

// Role tags who produced a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// SummaryLabel prefixes the content of every Summary Turn so it can be told
// apart from organic conversation.
const SummaryLabel = "Summary of previous dialogue: "

// Turn is one utterance in a conversation. Turns are values and are never
// modified after creation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }
func SystemTurn(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }

// SummaryTurn wraps condensed text into a labelled system Turn.
func SummaryTurn(condensed string) Turn {
	return SystemTurn(SummaryLabel + strings.TrimSpace(condensed))
}

// IsSummary reports whether t was produced by summarization.
func (t Turn) IsSummary() bool {
	return t.Role == RoleSystem && strings.HasPrefix(t.Content, SummaryLabel)
}

// History is the ordered sequence of Turns for one user. Append order is the
// conversational timeline.
type History []Turn

// Append returns a new History with t added at the end. The receiver's
// backing array is never shared with the result.
func (h History) Append(t Turn) History {
	out := make(History, 0, len(h)+1)
	out = append(out, h...)
	return append(out, t)
}

// Clone returns an independent copy of h.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Last returns the newest Turn, or false for an empty History.
func (h History) Last() (Turn, bool) {
	if len(h) == 0 {
		return Turn{}, false
	}
	return h[len(h)-1], true
}

// HistoryKey is the Store key for a user's History.
func HistoryKey(userID int64) string {
	return "history:" + strconv.FormatInt(userID, 10)
}
