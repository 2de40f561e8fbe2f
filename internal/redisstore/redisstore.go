// Package redisstore keeps session histories in Redis under
// "history:<userId>" keys, one JSON string value per user.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stupiduntilnot/botik/internal/session"
)

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration
}

// Store implements session.Store on a Redis client.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Store{client: client, ttl: opts.TTL}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, userID int64) (session.History, error) {
	key := session.HistoryKey(userID)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get %s: %w", session.ErrStoreUnavailable, key, err)
	}
	return session.DecodeHistory(raw)
}

func (s *Store) Set(ctx context.Context, userID int64, h session.History) error {
	key := session.HistoryKey(userID)
	raw, err := session.EncodeHistory(h)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %w", session.ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID int64) error {
	key := session.HistoryKey(userID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %w", session.ErrStoreUnavailable, key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
