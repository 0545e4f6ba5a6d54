package paystackwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wavelength-fm/station-backend/pkg/redis"
)

// IdempotencyGuard remembers delivery digests so redeliveries skip the store.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark reports whether digest was already seen, marking it if not.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, errors.New("delivery digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete forgets digest so a provider retry is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, digest string) error {
	if digest == "" {
		return errors.New("delivery digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	return g.store.Del(ctx, key)
}
