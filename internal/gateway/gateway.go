// Package gateway adapts model providers to the session engine's Completer
// and Summarizer contracts. Each gateway owns its own provider; credentials
// are never shared between the two.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ctxpkg "github.com/stupiduntilnot/botik/internal/context"
	modelpkg "github.com/stupiduntilnot/botik/internal/model"
	"github.com/stupiduntilnot/botik/internal/session"
)

// Completion wraps the remote chat completion call.
type Completion struct {
	provider     modelpkg.Provider
	assembler    *ctxpkg.StandardAssembler
	systemPrompt string
	logger       *slog.Logger
}

func NewCompletion(provider modelpkg.Provider, systemPrompt string, logger *slog.Logger) *Completion {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completion{
		provider:     provider,
		assembler:    &ctxpkg.StandardAssembler{},
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Complete performs one round trip. It never retries.
func (c *Completion) Complete(ctx context.Context, h session.History) (string, error) {
	last, ok := h.Last()
	if !ok {
		return "", fmt.Errorf("%w: %w: empty history", session.ErrCompletionFailed, session.ErrInvalidHistory)
	}
	if last.Role != session.RoleUser {
		return "", fmt.Errorf("%w: %w: last turn is %s, want user", session.ErrCompletionFailed, session.ErrInvalidHistory, last.Role)
	}

	messages := c.assembler.Assemble(c.systemPrompt, h)
	started := time.Now()
	resp, err := c.provider.ChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", session.ErrCompletionFailed, err)
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", session.ErrCompletionFailed)
	}
	c.logger.Debug("completion done",
		"messages", len(messages),
		"latency_ms", time.Since(started).Milliseconds(),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return reply, nil
}

// Summarization wraps the remote summarization call.
type Summarization struct {
	provider modelpkg.Provider
	logger   *slog.Logger
}

func NewSummarization(provider modelpkg.Provider, logger *slog.Logger) *Summarization {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarization{provider: provider, logger: logger}
}

// Summarize condenses h into a single labelled system Turn. It never retries.
func (s *Summarization) Summarize(ctx context.Context, h session.History) (session.Turn, error) {
	if len(h) == 0 {
		return session.Turn{}, fmt.Errorf("%w: %w: empty history", session.ErrSummarizationFailed, session.ErrInvalidHistory)
	}
	started := time.Now()
	resp, err := s.provider.ChatCompletion(ctx, ctxpkg.SummaryPrompt(h))
	if err != nil {
		return session.Turn{}, fmt.Errorf("%w: %w", session.ErrSummarizationFailed, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return session.Turn{}, fmt.Errorf("%w: empty summary", session.ErrSummarizationFailed)
	}
	s.logger.Debug("summarization done",
		"turns", len(h),
		"latency_ms", time.Since(started).Milliseconds(),
		"summary_chars", len([]rune(text)),
	)
	return session.SummaryTurn(text), nil
}
