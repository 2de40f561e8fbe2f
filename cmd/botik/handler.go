package main

import (
	"context"
	"log/slog"
	"strings"

	cmdpkg "github.com/stupiduntilnot/botik/internal/commander"
	"github.com/stupiduntilnot/botik/internal/db"
)

// User-facing texts.
const (
	startText = "Привет! Я бот с LLM. Напиши /new чтобы начать новый диалог или просто задай вопрос.\n" +
		"Команды:\n/new — начать новый диалог\n/help — помощь"
	helpText = "Я пересылаю твои сообщения в LLM и возвращаю ответы.\n" +
		"/new — начать новый диалог (очистить историю)\n" +
		"/help — показать справку"
	newDialogText   = "Новый диалог начат. Напиши свой вопрос:"
	thinkingText    = "🤔 Думаю над ответом…"
	failureText     = "⚠️ Ошибка при обращении к API."
	resetFailedText = "⚠️ Не удалось начать новый диалог."
)

// handleMessage serves one incoming message. It runs on the dispatcher, so
// messages of the same user are handled one at a time in receipt order.
func (b *bot) handleMessage(ctx context.Context, msg *cmdpkg.Message) {
	if msg == nil || msg.Text == nil {
		return
	}
	text := *msg.Text
	userID := msg.SenderID()
	chatID := msg.Chat.ID
	log := b.logger.With("user_id", userID, "chat_id", chatID)

	if cmd, ok := parseCommand(text); ok {
		if !b.addressedToMe(cmd) {
			log.Debug("ignoring command for another bot", "command", cmd.name, "target", cmd.target)
			return
		}
		switch cmd.name {
		case "start":
			b.reply(log, chatID, startText)
		case "help":
			b.reply(log, chatID, helpText)
		case "new":
			if err := b.controller.Reset(ctx, userID); err != nil {
				log.Warn("session reset failed", "error_class", classifyError(err), "error", err)
				b.reply(log, chatID, resetFailedText)
				return
			}
			b.reply(log, chatID, newDialogText)
		default:
			log.Debug("ignoring unknown command", "command", cmd.name)
		}
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	if err := b.commander.SendChatAction(chatID, cmdpkg.ActionTyping); err != nil {
		log.Debug("send chat action failed", "error", err)
	}
	placeholderID, err := b.commander.SendMessage(chatID, thinkingText)
	if err != nil {
		log.Warn("send placeholder failed", "error", err)
		placeholderID = 0
	}

	// Turn failures stay with this user; only transport failures reach the
	// shared polling breaker.
	reply, err := b.controller.Handle(ctx, userID, text)
	if err != nil {
		log.Warn("turn failed", "error_class", classifyError(err), "error", err)
		b.deliver(log, chatID, placeholderID, failureText)
		return
	}
	if b.deliver(log, chatID, placeholderID, reply) {
		b.logEvent(db.EventReplySent, map[string]any{
			"user_id":     userID,
			"chat_id":     chatID,
			"reply_chars": len([]rune(reply)),
		})
	}
}

// deliver puts text in front of the user: the first chunk replaces the
// placeholder (or is sent anew when there is none or the edit fails), the
// remaining chunks follow as new messages.
func (b *bot) deliver(log *slog.Logger, chatID, placeholderID int64, text string) bool {
	chunks := cmdpkg.SplitText(text, cmdpkg.MaxMessageUTF16)
	for i, chunk := range chunks {
		if i == 0 && placeholderID != 0 {
			err := b.commander.EditMessageText(chatID, placeholderID, chunk)
			if err == nil {
				continue
			}
			log.Warn("edit placeholder failed; sending new message", "error", err)
		}
		if _, err := b.commander.SendMessage(chatID, chunk); err != nil {
			log.Warn("send reply failed", "chunk", i+1, "chunks", len(chunks), "error", err)
			b.recordFailure(err)
			return false
		}
	}
	return true
}

func (b *bot) reply(log *slog.Logger, chatID int64, text string) {
	if _, err := b.commander.SendMessage(chatID, text); err != nil {
		log.Warn("send reply failed", "error", err)
		b.recordFailure(err)
	}
}

type command struct {
	name   string
	target string
}

// addressedToMe reports whether cmd is meant for this bot. Commands without
// a @target, and all commands while the bot's own username is unknown, are.
func (b *bot) addressedToMe(cmd command) bool {
	return cmd.target == "" || b.username == "" || strings.EqualFold(cmd.target, b.username)
}

// parseCommand recognizes "/name" and "/name@botname", with optional
// arguments after a space.
func parseCommand(text string) (command, bool) {
	if !strings.HasPrefix(text, "/") {
		return command{}, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return command{}, false
	}
	name, target, _ := strings.Cut(fields[0], "@")
	if name == "" {
		return command{}, false
	}
	return command{name: strings.ToLower(name), target: target}, true
}
