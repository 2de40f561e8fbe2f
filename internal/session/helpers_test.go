package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// scriptedCompleter returns replies in order and records every History it
// was asked to complete.
type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []History
}

func (s *scriptedCompleter) Complete(_ context.Context, h History) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.calls)
	s.calls = append(s.calls, h.Clone())
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return fmt.Sprintf("r%d", i+1), nil
}

func (s *scriptedCompleter) Calls() []History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]History(nil), s.calls...)
}

type stubSummarizer struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []History
}

func (s *stubSummarizer) Summarize(_ context.Context, h History) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, h.Clone())
	if s.err != nil {
		return Turn{}, s.err
	}
	text := s.text
	if text == "" {
		text = "condensed"
	}
	return SummaryTurn(text), nil
}

func (s *stubSummarizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// flakyStore fails the operations that are switched on.
type flakyStore struct {
	*MemoryStore
	failGet, failSet, failDelete bool
}

var errBackendDown = errors.New("backend down")

func (s *flakyStore) Get(ctx context.Context, userID int64) (History, error) {
	if s.failGet {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, errBackendDown)
	}
	return s.MemoryStore.Get(ctx, userID)
}

func (s *flakyStore) Set(ctx context.Context, userID int64, h History) error {
	if s.failSet {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, errBackendDown)
	}
	return s.MemoryStore.Set(ctx, userID, h)
}

func (s *flakyStore) Delete(ctx context.Context, userID int64) error {
	if s.failDelete {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, errBackendDown)
	}
	return s.MemoryStore.Delete(ctx, userID)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}
