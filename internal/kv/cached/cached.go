// Package cached puts an in-process ristretto cache in front of a durable
// kv.Storage.
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// minCounters keeps small budgets above ristretto's zero-counter check.
const minCounters = 1000

// Storage reads through an L1 cache and writes through to the backing store.
// The backing store stays authoritative: a write reaches it before the cache
// is touched, and a failed write evicts the key from the cache.
type Storage struct {
	l1      *ristretto.Cache[string, string]
	backing kv.Storage
	ttl     time.Duration
}

// New wraps backing with a cache of at most maxCostBytes of values. Entries
// expire after ttl; ttl <= 0 keeps them until evicted.
func New(backing kv.Storage, maxCostBytes int64, ttl time.Duration) (*Storage, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("cache budget must be positive, got %d", maxCostBytes)
	}
	// ~10x expected items, assuming 100-byte entries.
	counters := maxCostBytes / 100 * 10
	if counters < minCounters {
		counters = minCounters
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Storage{l1: c, backing: backing, ttl: ttl}, nil
}

// Get checks L1, then the backing store, backfilling L1 on a hit.
func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	if val, found := s.l1.Get(key); found {
		return val, true, nil
	}
	val, found, err := s.backing.Get(ctx, key)
	if err != nil || !found {
		return val, found, err
	}
	s.remember(key, val)
	return val, true, nil
}

// Set writes through to the backing store, then caches value. A failed
// write evicts key so the cache never serves a value the backing store lacks.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.backing.Set(ctx, key, value); err != nil {
		s.l1.Del(key)
		return err
	}
	s.remember(key, value)
	return nil
}

// Delete evicts key from the cache and deletes it from the backing store.
func (s *Storage) Delete(ctx context.Context, key string) error {
	s.l1.Del(key)
	return s.backing.Delete(ctx, key)
}

// HealthCheck delegates to the backing store.
func (s *Storage) HealthCheck(ctx context.Context) error {
	return kv.HealthCheck(ctx, s.backing)
}

// Close shuts down the cache. The backing store is left open.
func (s *Storage) Close() {
	s.l1.Close()
}

func (s *Storage) remember(key, value string) {
	s.l1.SetWithTTL(key, value, int64(len(key)+len(value)), s.ttl)
	s.l1.Wait()
}
