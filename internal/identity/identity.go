// Package identity provides the pseudonymous per-profile user identifier used
// to attribute ratings.
package identity

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/domain"
	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// Provider lazily creates and then reuses one identifier per storage key.
type Provider struct {
	storage kv.Storage
	key     string
	logger  *zap.Logger
	newID   func() string

	mu        sync.Mutex
	id        string
	ephemeral bool
}

// New returns a provider persisting its identifier under key.
func New(storage kv.Storage, key string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{storage: storage, key: key, logger: logger, newID: domain.NewID}
}

// GetOrCreateUserID returns the persisted identifier, creating and persisting
// one on first use. When storage cannot be read or written the failure is
// logged and an in-memory identifier is used for the rest of the process.
func (p *Provider) GetOrCreateUserID(ctx context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id
	}

	stored, ok, err := p.storage.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("identity: storage unavailable, using ephemeral user id",
			zap.String("key", p.key), zap.Error(err))
		return p.useEphemeral()
	}
	if ok && strings.TrimSpace(stored) != "" {
		p.id = stored
		return p.id
	}

	id := p.newID()
	if err := p.storage.Set(ctx, p.key, id); err != nil {
		p.logger.Warn("identity: could not persist user id, using ephemeral user id",
			zap.String("key", p.key), zap.Error(err))
		p.id = id
		p.ephemeral = true
		return p.id
	}
	p.logger.Info("identity: created user id", zap.String("key", p.key))
	p.id = id
	return p.id
}

// Ephemeral reports whether the current identifier failed to persist.
func (p *Provider) Ephemeral() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ephemeral
}

func (p *Provider) useEphemeral() string {
	p.id = p.newID()
	p.ephemeral = true
	return p.id
}
