// Package redistest provides an in-memory stand-in for the redis helpers.
package redistest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements redis.IdempotencyStore, redis.RateLimiter and
// redis.Pinger in memory.
// TTLs are recorded but never expire.
type Store struct {
	mu     sync.Mutex
	data   map[string]string
	counts map[string]int64
	TTLs   map[string]time.Duration

	// Err, when set, is returned by every call.
	Err error
}

func New() *Store {
	return &Store{
		data:   map[string]string{},
		counts: map[string]int64{},
		TTLs:   map[string]time.Duration{},
	}
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *Store) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = toString(value)
	s.TTLs[key] = ttl
	return true, nil
}

func (s *Store) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.data[key] = toString(value)
	s.TTLs[key] = ttl
	return nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, key := range keys {
		delete(s.data, key)
		delete(s.TTLs, key)
	}
	return nil
}

func (s *Store) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if v, ok := s.data[key]; !ok || v != token {
		return false, nil
	}
	delete(s.data, key)
	delete(s.TTLs, key)
	return true, nil
}

func (s *Store) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"test", "idempotency", scope, id}, ":")
}

func (s *Store) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, 0, s.Err
	}
	s.counts[scope]++
	count := s.counts[scope]
	return count <= limit, count, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Err
}

// Has reports whether key is currently stored.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return "1"
	}
}
