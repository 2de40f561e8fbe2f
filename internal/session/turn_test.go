package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleUser, RoleAssistant, RoleSystem} {
		assert.True(t, r.Valid(), "role %q", r)
	}
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestHistory_AppendDoesNotAlias(t *testing.T) {
	base := make(History, 1, 8)
	base[0] = UserTurn("a")

	left := base.Append(AssistantTurn("left"))
	right := base.Append(AssistantTurn("right"))

	require.Len(t, base, 1)
	assert.Equal(t, "left", left[1].Content)
	assert.Equal(t, "right", right[1].Content)
}

func TestHistory_Last(t *testing.T) {
	_, ok := History{}.Last()
	assert.False(t, ok)

	last, ok := History{UserTurn("a"), AssistantTurn("b")}.Last()
	require.True(t, ok)
	assert.Equal(t, AssistantTurn("b"), last)
}

func TestSummaryTurn(t *testing.T) {
	s := SummaryTurn("  user greeted the bot \n")
	assert.Equal(t, RoleSystem, s.Role)
	assert.Equal(t, "Summary of previous dialogue: user greeted the bot", s.Content)
	assert.True(t, s.IsSummary())
	assert.False(t, SystemTurn("be brief").IsSummary())
	assert.False(t, UserTurn(SummaryLabel+"spoof").IsSummary())
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "history:42", HistoryKey(42))
	assert.Equal(t, "history:-100123", HistoryKey(-100123))
}
