package commander

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_SenderID(t *testing.T) {
	m := &Message{Chat: Chat{ID: -100}, From: &User{ID: 7}}
	assert.Equal(t, int64(7), m.SenderID())

	m.From = nil
	assert.Equal(t, int64(-100), m.SenderID())
}

func TestSplitText(t *testing.T) {
	assert.Nil(t, SplitText("", 10))
	assert.Equal(t, []string{"short"}, SplitText("short", 10))
	assert.Equal(t, []string{"abcde", "fghij", "k"}, SplitText("abcdefghijk", 5))

	// breaks after a newline in the second half of the chunk
	assert.Equal(t, []string{"line one\n", "line two"}, SplitText("line one\nline two", 12))
}

func TestSplitText_LongReply(t *testing.T) {
	text := strings.Repeat("я", 5000)
	chunks := SplitText(text, MaxMessageUTF16)
	require.Len(t, chunks, 2)
	assert.Equal(t, MaxMessageUTF16, UTF16Len(chunks[0]))
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitText_SurrogatePairs(t *testing.T) {
	text := strings.Repeat("😀", 3000)
	chunks := SplitText(text, MaxMessageUTF16)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, UTF16Len(c), MaxMessageUTF16)
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, 2048, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, text, strings.Join(chunks, ""))

	// an odd limit never splits a pair
	for _, c := range SplitText("😀😀😀", 3) {
		assert.Equal(t, "😀", c)
	}
}
