// Package memory implements kv.Storage in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// Storage is a map-backed store. With a positive quota it rejects writes
// that would grow the total size of keys and values beyond it, the way a
// browser's local storage does.
type Storage struct {
	mu    sync.RWMutex
	data  map[string]string
	size  int
	quota int
}

// New returns an empty store. quota <= 0 disables the limit.
func New(quota int) *Storage {
	return &Storage{data: make(map[string]string), quota: quota}
}

// Get returns the value stored under key and whether it exists.
func (s *Storage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok, nil
}

// Set stores value under key. It fails with kv.ErrQuotaExceeded, leaving the
// previous value in place, when the write would push the total size of keys
// and values past the quota.
func (s *Storage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.size + len(key) + len(value)
	if prev, ok := s.data[key]; ok {
		next -= len(key) + len(prev)
	}
	if s.quota > 0 && next > s.quota {
		return fmt.Errorf("set %q (%d bytes over %d): %w", key, next-s.quota, s.quota, kv.ErrQuotaExceeded)
	}
	s.data[key] = value
	s.size = next
	return nil
}

// Delete removes key and releases its share of the quota. Deleting a missing
// key is a no-op.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.data[key]; ok {
		s.size -= len(key) + len(prev)
		delete(s.data, key)
	}
	return nil
}

// Size returns the bytes currently counted against the quota.
func (s *Storage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}
