package session

import (
	"context"
	"fmt"
	"sync"
)

// Store is the durable mapping from user id to History. Implementations wrap
// backend failures with ErrStoreUnavailable and undecodable values with
// ErrMalformedHistory.
type Store interface {
	Get(ctx context.Context, userID int64) (History, error)
	Set(ctx context.Context, userID int64, h History) error
	Delete(ctx context.Context, userID int64) error
}

// MemoryStore keeps encoded histories in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) Get(ctx context.Context, userID int64) (History, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	raw, ok := s.data[HistoryKey(userID)]
	s.mu.Unlock()
	if !ok {
		return History{}, nil
	}
	return DecodeHistory(raw)
}

func (s *MemoryStore) Set(ctx context.Context, userID int64, h History) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	raw, err := EncodeHistory(h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[HistoryKey(userID)] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	delete(s.data, HistoryKey(userID))
	s.mu.Unlock()
	return nil
}

// Raw returns the encoded value stored for userID.
func (s *MemoryStore) Raw(userID int64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[HistoryKey(userID)]
	return raw, ok
}

// PutRaw stores an already-encoded value, bypassing the codec.
func (s *MemoryStore) PutRaw(userID int64, raw []byte) {
	s.mu.Lock()
	s.data[HistoryKey(userID)] = raw
	s.mu.Unlock()
}
