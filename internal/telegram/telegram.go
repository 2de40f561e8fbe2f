package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cmdpkg "github.com/stupiduntilnot/botik/internal/commander"
)

// Client is a minimal Telegram Bot API client.
type Client struct {
	apiBase    string
	httpClient *http.Client
}

// NewClient creates a Telegram client for the given bot API base URL
// (e.g. "https://api.telegram.org/bot<token>").
func NewClient(apiBase string, requestTimeout time.Duration) *Client {
	return &Client{
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Response is the generic Telegram API response wrapper.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

type Update = cmdpkg.Update
type Message = cmdpkg.Message
type Chat = cmdpkg.Chat

// GetUpdates calls the getUpdates API (long polling for timeout seconds).
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeout))
	params.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	result, err := decodeResponse(resp, "getUpdates")
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram failed to parse getUpdates result: %w", err)
	}
	return updates, nil
}

// GetMe returns the bot's own user, used to recognise commands addressed to it.
func (c *Client) GetMe(ctx context.Context) (cmdpkg.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/getMe", nil)
	if err != nil {
		return cmdpkg.User{}, fmt.Errorf("telegram getMe request failed: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cmdpkg.User{}, fmt.Errorf("telegram getMe request failed: %w", err)
	}
	defer resp.Body.Close()

	result, err := decodeResponse(resp, "getMe")
	if err != nil {
		return cmdpkg.User{}, err
	}
	var me cmdpkg.User
	if err := json.Unmarshal(result, &me); err != nil {
		return cmdpkg.User{}, fmt.Errorf("telegram failed to parse getMe result: %w", err)
	}
	return me, nil
}

// SendMessage sends a text message to the given chat and returns its id.
// Text longer than commander.MaxMessageUTF16 is rejected by the API; callers
// split it with commander.SplitText.
func (c *Client) SendMessage(chatID int64, text string) (int64, error) {
	result, err := c.post("sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return 0, err
	}
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, fmt.Errorf("telegram failed to parse sendMessage result: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessageText replaces the text of a message previously sent by the bot.
func (c *Client) EditMessageText(chatID, messageID int64, text string) error {
	_, err := c.post("editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
	return err
}

// SendChatAction shows a transient status such as "typing" in the chat.
func (c *Client) SendChatAction(chatID int64, action string) error {
	_, err := c.post("sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  action,
	})
	return err
}

func (c *Client) post(method string, payload map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram %s marshal failed: %w", method, err)
	}
	resp, err := c.httpClient.Post(
		c.apiBase+"/"+method,
		"application/json",
		strings.NewReader(string(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, method)
}

func decodeResponse(resp *http.Response, method string) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram failed to read %s response: %w", method, err)
	}
	var tgResp Response
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return nil, fmt.Errorf("telegram failed to parse %s response status=%d: %w", method, resp.StatusCode, err)
	}
	if !tgResp.OK {
		return nil, fmt.Errorf("telegram %s not ok code=%d: %s", method, tgResp.ErrorCode, truncate(tgResp.Description, 300))
	}
	return tgResp.Result, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
