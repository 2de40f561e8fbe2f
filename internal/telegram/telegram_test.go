package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUpdates_ParsesMessages(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getUpdates", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":11,"message":{"message_id":5,"from":{"id":42,"username":"ann"},"chat":{"id":123},"text":"привет","date":1700000000}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)

	u := updates[0]
	assert.Equal(t, int64(11), u.UpdateID)
	require.NotNil(t, u.Message)
	require.NotNil(t, u.Message.Text)
	assert.Equal(t, "привет", *u.Message.Text)
	assert.Equal(t, int64(42), u.Message.SenderID())
	assert.Equal(t, int64(123), u.Message.Chat.ID)
	assert.Contains(t, gotQuery, "offset=10")
}

func TestGetUpdates_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.GetUpdates(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code=401")
}

func TestGetUpdates_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.GetUpdates(ctx, 0, 30)
	require.Error(t, err)
}

func TestSendMessage_ReturnsMessageIDAndSendsTextUnchanged(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":77,"chat":{"id":123},"date":1}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	text := strings.Repeat("я", 4000)
	id, err := c.SendMessage(123, text)
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, float64(123), payload["chat_id"])
	assert.Equal(t, text, payload["text"])
}

func TestEditMessageText(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/editMessageText", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":9}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	require.NoError(t, c.EditMessageText(123, 9, "answer"))
	assert.Equal(t, float64(9), payload["message_id"])
	assert.Equal(t, "answer", payload["text"])
}

func TestEditMessageText_NotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	err := c.EditMessageText(123, 9, "answer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message to edit not found")
}

func TestSendChatAction(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendChatAction", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &payload))
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	require.NoError(t, c.SendChatAction(123, "typing"))
	assert.Equal(t, "typing", payload["action"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "аб", truncate("абв", 2))
}

func TestGetMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getMe", r.URL.Path)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":555,"is_bot":true,"username":"botik_bot"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	me, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(555), me.ID)
	assert.Equal(t, "botik_bot", me.Username)
}
