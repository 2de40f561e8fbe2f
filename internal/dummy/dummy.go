// Package dummy provides scripted Commander and Provider implementations for
// local runs and tests. A script is a comma-separated list of actions:
// ok, err:<class>, sleep:<ms>, msg:<text>, msgb64:<base64 text>. The last
// action repeats once the script is exhausted.
package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdpkg "github.com/stupiduntilnot/botik/internal/commander"
	ctxpkg "github.com/stupiduntilnot/botik/internal/context"
	modelpkg "github.com/stupiduntilnot/botik/internal/model"
)

// UserID and ChatID identify the sender of every scripted message.
const (
	UserID int64 = 1
	ChatID int64 = 1
)

// BotUsername is the username reported by the scripted Commander's GetMe.
const BotUsername = "botik_dummy_bot"

type action struct {
	kind string
	arg  string
}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" {
			actions = append(actions, action{kind: "ok"})
			continue
		}
		kind, arg, found := strings.Cut(token, ":")
		if !found {
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
		switch kind {
		case "err", "sleep", "msg", "msgb64":
			actions = append(actions, action{kind: kind, arg: arg})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

func sleepMillis(ctx context.Context, arg string) error {
	ms, _ := strconv.Atoi(arg)
	if ms <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sent is a message recorded by the scripted Commander.
type Sent struct {
	ChatID    int64
	MessageID int64
	Text      string
	Edited    bool
}

// Commander replays a poll script as incoming updates and a send script as
// outcomes of SendMessage and EditMessageText. Delivered texts are kept for
// inspection.
type Commander struct {
	mu        sync.Mutex
	poll      *scriptRunner
	send      *scriptRunner
	updateID  int64
	messageID int64
	sent      []Sent
	actions   []string
}

func NewCommander(pollScript, sendScript string) (*Commander, error) {
	poll, err := newRunner(pollScript)
	if err != nil {
		return nil, err
	}
	send, err := newRunner(sendScript)
	if err != nil {
		return nil, err
	}
	return &Commander{poll: poll, send: send, updateID: 1}, nil
}

func (c *Commander) GetUpdates(ctx context.Context, offset int64, timeout int) ([]cmdpkg.Update, error) {
	c.mu.Lock()
	a := c.poll.next()
	c.mu.Unlock()

	switch a.kind {
	case "err":
		return nil, fmt.Errorf("dummy commander error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		return nil, sleepMillis(ctx, a.arg)
	case "msg":
		return c.message(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return nil, fmt.Errorf("dummy commander msgb64 decode failed: %w", err)
		}
		return c.message(string(raw)), nil
	default:
		return nil, nil
	}
}

func (c *Commander) message(text string) []cmdpkg.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateID++
	c.messageID++
	return []cmdpkg.Update{{
		UpdateID: c.updateID,
		Message: &cmdpkg.Message{
			MessageID: c.messageID,
			From:      &cmdpkg.User{ID: UserID},
			Chat:      cmdpkg.Chat{ID: ChatID},
			Text:      &text,
			Date:      time.Now().Unix(),
		},
	}}
}

func (c *Commander) SendMessage(chatID int64, text string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deliver(); err != nil {
		return 0, err
	}
	c.messageID++
	c.sent = append(c.sent, Sent{ChatID: chatID, MessageID: c.messageID, Text: text})
	return c.messageID, nil
}

func (c *Commander) EditMessageText(chatID, messageID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deliver(); err != nil {
		return err
	}
	c.sent = append(c.sent, Sent{ChatID: chatID, MessageID: messageID, Text: text, Edited: true})
	return nil
}

func (c *Commander) SendChatAction(chatID int64, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, action)
	return nil
}

func (c *Commander) GetMe(ctx context.Context) (cmdpkg.User, error) {
	return cmdpkg.User{ID: 1000, Username: BotUsername}, nil
}

// must be called with c.mu held
func (c *Commander) deliver() error {
	a := c.send.next()
	switch a.kind {
	case "err":
		return fmt.Errorf("dummy commander send error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}
	return nil
}

// Sent returns a copy of every delivered message and edit, in order.
func (c *Commander) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// Actions returns the chat actions sent so far.
func (c *Commander) Actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.actions))
	copy(out, c.actions)
	return out
}

// Provider answers chat completions from a script.
type Provider struct {
	mu     sync.Mutex
	model  string
	script *scriptRunner
	calls  [][]ctxpkg.Message
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	a := p.script.next()
	p.calls = append(p.calls, append([]ctxpkg.Message(nil), messages...))
	p.mu.Unlock()

	var content string
	switch a.kind {
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		if err := sleepMillis(ctx, a.arg); err != nil {
			return modelpkg.CompletionResponse{}, err
		}
		content = "dummy-after-sleep"
	case "msg":
		content = a.arg
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		content = string(raw)
	default:
		content = emptyAs(a.arg, "dummy-ok")
	}
	return modelpkg.CompletionResponse{Content: content, InputTokens: 1, OutputTokens: 1}, nil
}

// Calls returns the message lists the provider has been asked to complete.
func (p *Provider) Calls() [][]ctxpkg.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]ctxpkg.Message, len(p.calls))
	copy(out, p.calls)
	return out
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
