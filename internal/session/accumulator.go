package session

import (
	"context"
	"errors"
	"log/slog"
)

// Accumulator appends Turns to a user's History through a Store. Each append
// is one Store read followed by one Store write.
type Accumulator struct {
	store  Store
	logger *slog.Logger
}

func NewAccumulator(store Store, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{store: store, logger: logger}
}

// AppendUser persists a user Turn and returns the resulting History.
func (a *Accumulator) AppendUser(ctx context.Context, userID int64, text string) (History, error) {
	return a.append(ctx, userID, UserTurn(text))
}

// AppendAssistant persists an assistant Turn and returns the resulting History.
func (a *Accumulator) AppendAssistant(ctx context.Context, userID int64, text string) (History, error) {
	return a.append(ctx, userID, AssistantTurn(text))
}

// Replace overwrites the user's History.
func (a *Accumulator) Replace(ctx context.Context, userID int64, h History) error {
	return a.store.Set(ctx, userID, h)
}

// Reset deletes the user's History; the next read sees an empty History.
func (a *Accumulator) Reset(ctx context.Context, userID int64) error {
	return a.store.Delete(ctx, userID)
}

// Load reads the user's History. Corrupt stored data is treated as empty.
func (a *Accumulator) Load(ctx context.Context, userID int64) (History, error) {
	h, err := a.store.Get(ctx, userID)
	if errors.Is(err, ErrMalformedHistory) {
		a.logger.Warn("discarding corrupt session history", "user_id", userID, "error", err)
		return History{}, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (a *Accumulator) append(ctx context.Context, userID int64, t Turn) (History, error) {
	h, err := a.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	h = h.Append(t)
	if err := a.store.Set(ctx, userID, h); err != nil {
		return nil, err
	}
	return h, nil
}
