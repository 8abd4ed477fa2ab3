package kvtest

import (
	"context"
	"sync"

	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// Faulty wraps a storage and injects errors, standing in for a disabled or
// full browser store.
type Faulty struct {
	kv.Storage

	mu     sync.Mutex
	getErr error
	setErr error
}

// NewFaulty wraps s.
func NewFaulty(s kv.Storage) *Faulty {
	return &Faulty{Storage: s}
}

// FailGets makes every Get return err; nil restores normal behaviour.
func (f *Faulty) FailGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailSets makes every Set and Delete return err; nil restores normal behaviour.
func (f *Faulty) FailSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

func (f *Faulty) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return f.Storage.Get(ctx, key)
}

func (f *Faulty) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Storage.Set(ctx, key, value)
}

func (f *Faulty) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	err := f.setErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Storage.Delete(ctx, key)
}
