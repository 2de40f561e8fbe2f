package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stupiduntilnot/botik/internal/control"
)

// SummaryFailurePolicy decides what happens to a turn whose summarization
// fails.
type SummaryFailurePolicy int

const (
	// KeepUnsummarized persists the full History and still delivers the
	// reply. Summarization is retried naturally on the next turn because
	// the History is still over the threshold.
	KeepUnsummarized SummaryFailurePolicy = iota
	// DropTurn fails the turn without persisting the assistant Turn.
	DropTurn
)

// ParseSummaryFailurePolicy maps "keep" and "drop" to a policy.
func ParseSummaryFailurePolicy(s string) (SummaryFailurePolicy, error) {
	switch s {
	case "", "keep":
		return KeepUnsummarized, nil
	case "drop":
		return DropTurn, nil
	default:
		return 0, fmt.Errorf("unknown summary failure policy %q", s)
	}
}

func (p SummaryFailurePolicy) String() string {
	if p == DropTurn {
		return "drop"
	}
	return "keep"
}

// ControllerConfig wires a Controller. Store, Completer and Summarizer are
// required; Threshold must be positive.
type ControllerConfig struct {
	Store         Store
	Completer     Completer
	Summarizer    Summarizer
	Threshold     int
	Policy        control.Policy
	SummaryPolicy SummaryFailurePolicy
	Events        EventSink
	Logger        *slog.Logger
}

// Controller runs conversational turns. Turns for different users proceed
// concurrently; turns for the same user are serialized in arrival order.
type Controller struct {
	acc           *Accumulator
	completer     Completer
	summarizer    Summarizer
	threshold     int
	policy        control.Policy
	summaryPolicy SummaryFailurePolicy
	events        EventSink
	logger        *slog.Logger
	locks         *userLocks
	sleep         func(ctx context.Context, d time.Duration) error
	// persistTimeout bounds the final write, which is detached from the
	// turn deadline.
	persistTimeout time.Duration
}

const defaultPersistTimeout = 10 * time.Second

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("session: completer is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("session: summarizer is required")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("session: threshold must be positive, got %d", cfg.Threshold)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	events := cfg.Events
	if events == nil {
		events = nopSink{}
	}
	return &Controller{
		acc:           NewAccumulator(cfg.Store, logger),
		completer:     cfg.Completer,
		summarizer:    cfg.Summarizer,
		threshold:     cfg.Threshold,
		policy:        cfg.Policy,
		summaryPolicy: cfg.SummaryPolicy,
		events:        events,
		logger:        logger,
		locks:         newUserLocks(),
		sleep:         sleepCtx,

		persistTimeout: defaultPersistTimeout,
	}, nil
}

// Handle runs one turn for userID and returns the assistant reply.
//
// The user Turn is persisted before the completion call, so a failed
// completion never loses the user's message. The threshold is checked after
// the assistant Turn is appended; when reached, the whole History is replaced
// by a single Summary Turn before the final write.
func (c *Controller) Handle(ctx context.Context, userID int64, text string) (string, error) {
	if c.policy.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.TurnTimeout)
		defer cancel()
	}

	if err := c.locks.lock(ctx, userID); err != nil {
		return "", fmt.Errorf("%w: waiting for previous turn: %w", ErrCompletionFailed, err)
	}
	defer c.locks.unlock(userID)

	turnID := uuid.NewString()
	log := c.logger.With("user_id", userID, "turn_id", turnID)
	started := time.Now()
	c.record(ctx, EventTurnStarted, userID, turnID, map[string]any{"text_chars": len([]rune(text))})

	history, err := c.acc.AppendUser(ctx, userID, text)
	if err != nil {
		return "", c.fail(ctx, log, userID, turnID, "append_user", err)
	}

	reply, err := c.complete(ctx, log, history)
	if err != nil {
		return "", c.fail(ctx, log, userID, turnID, "generate", err)
	}

	history = history.Append(AssistantTurn(reply))

	summarized := false
	if len(history) >= c.threshold {
		summary, err := c.summarizer.Summarize(ctx, history)
		if err != nil {
			if !errors.Is(err, ErrSummarizationFailed) {
				err = fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
			}
			c.record(ctx, EventSummaryFailed, userID, turnID, map[string]any{
				"history_len": len(history),
				"policy":      c.summaryPolicy.String(),
				"error":       err.Error(),
			})
			if c.summaryPolicy == DropTurn {
				return "", c.fail(ctx, log, userID, turnID, "summarize", err)
			}
			log.Warn("summarization failed; keeping full history", "history_len", len(history), "error", err)
		} else {
			c.record(ctx, EventHistorySummarized, userID, turnID, map[string]any{
				"replaced_turns": len(history),
				"summary_chars":  len([]rune(summary.Content)),
			})
			log.Info("history summarized", "replaced_turns", len(history))
			history = History{summary}
			summarized = true
		}
	}

	if err := c.persist(ctx, userID, history); err != nil {
		return "", c.fail(ctx, log, userID, turnID, "persist", err)
	}

	latency := time.Since(started)
	c.record(ctx, EventTurnCompleted, userID, turnID, map[string]any{
		"history_len": len(history),
		"summarized":  summarized,
		"latency_ms":  latency.Milliseconds(),
	})
	log.Debug("turn completed", "history_len", len(history), "summarized", summarized, "latency", latency)
	return reply, nil
}

// Reset clears the user's History. It waits for any in-flight turn of the
// same user to finish first.
func (c *Controller) Reset(ctx context.Context, userID int64) error {
	if err := c.locks.lock(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer c.locks.unlock(userID)

	if err := c.acc.Reset(ctx, userID); err != nil {
		c.logger.Error("session reset failed", "user_id", userID, "error", err)
		return err
	}
	c.record(ctx, EventSessionReset, userID, "", nil)
	c.logger.Info("session reset", "user_id", userID)
	return nil
}

// History returns the persisted History for userID.
func (c *Controller) History(ctx context.Context, userID int64) (History, error) {
	return c.acc.Load(ctx, userID)
}

// persist writes the final History under its own deadline.
func (c *Controller) persist(ctx context.Context, userID int64, h History) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()
	return c.acc.Replace(ctx, userID, h)
}

func (c *Controller) complete(ctx context.Context, log *slog.Logger, history History) (string, error) {
	attempts := 0
	for {
		reply, err := c.completer.Complete(ctx, history)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ErrCompletionFailed) {
			err = fmt.Errorf("%w: %w", ErrCompletionFailed, err)
		}
		attempts++
		if !control.ShouldRetry(c.policy, attempts) || errors.Is(err, ErrInvalidHistory) || ctx.Err() != nil {
			return "", err
		}
		backoff := control.RetryBackoff(c.policy, attempts)
		log.Warn("completion failed; retrying", "attempt", attempts, "backoff", backoff, "error", err)
		if serr := c.sleep(ctx, backoff); serr != nil {
			return "", fmt.Errorf("%w: %w", ErrCompletionFailed, serr)
		}
	}
}

func (c *Controller) fail(ctx context.Context, log *slog.Logger, userID int64, turnID, stage string, err error) error {
	c.record(ctx, EventTurnFailed, userID, turnID, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
	log.Error("turn failed", "stage", stage, "error", err)
	return err
}

// record uses a context detached from the turn deadline so that failures
// caused by the deadline are still recorded.
func (c *Controller) record(ctx context.Context, typ string, userID int64, turnID string, fields map[string]any) {
	c.events.Record(context.WithoutCancel(ctx), Event{
		Type:   typ,
		UserID: userID,
		TurnID: turnID,
		Fields: fields,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
