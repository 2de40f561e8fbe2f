package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stupiduntilnot/botik/internal/session"
)

// SessionStore keeps histories in the sessions table, one row per user.
type SessionStore struct {
	DB *sql.DB
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (session.History, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT history FROM sessions WHERE key = ?`, session.HistoryKey(userID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return session.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite get %s: %w", session.ErrStoreUnavailable, session.HistoryKey(userID), err)
	}
	return session.DecodeHistory([]byte(raw))
}

func (s *SessionStore) Set(ctx context.Context, userID int64, h session.History) error {
	raw, err := session.EncodeHistory(h)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO sessions (key, history, updated_at) VALUES (?, ?, unixepoch())
		 ON CONFLICT(key) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at`,
		session.HistoryKey(userID), string(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite set %s: %w", session.ErrStoreUnavailable, session.HistoryKey(userID), err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, session.HistoryKey(userID))
	if err != nil {
		return fmt.Errorf("%w: sqlite delete %s: %w", session.ErrStoreUnavailable, session.HistoryKey(userID), err)
	}
	return nil
}
