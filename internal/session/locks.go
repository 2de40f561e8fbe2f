package session

import (
	"context"
	"sync"
)

// userLocks is a keyed mutex whose waiters are admitted in arrival order.
// An entry lives only while someone holds or waits for it.
type userLocks struct {
	mu     sync.Mutex
	queues map[int64][]chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{queues: map[int64][]chan struct{}{}}
}

// lock blocks until the caller owns userID or ctx is done.
func (l *userLocks) lock(ctx context.Context, userID int64) error {
	ticket := make(chan struct{})
	l.mu.Lock()
	q := l.queues[userID]
	l.queues[userID] = append(q, ticket)
	if len(q) == 0 {
		close(ticket)
	}
	l.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		l.abandon(userID, ticket)
		return ctx.Err()
	}
}

// unlock releases userID and admits the next waiter.
func (l *userLocks) unlock(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queues[userID]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(l.queues, userID)
		return
	}
	l.queues[userID] = q
	close(q[0])
}

func (l *userLocks) abandon(userID int64, ticket chan struct{}) {
	l.mu.Lock()
	q := l.queues[userID]
	idx := -1
	for i, t := range q {
		if t == ticket {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	if idx == 0 {
		// The ticket was granted concurrently with cancellation.
		l.mu.Unlock()
		l.unlock(userID)
		return
	}
	q = append(q[:idx:idx], q[idx+1:]...)
	l.queues[userID] = q
	l.mu.Unlock()
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}
