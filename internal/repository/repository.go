package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/domain"
	"github.com/Clark-Hu/prompt-library/internal/identity"
	"github.com/Clark-Hu/prompt-library/internal/kv"
)

// DefaultScope prefixes every key the library writes.
const DefaultScope = "promptLibrary"

// Keys names the storage entries of one scope.
type Keys struct {
	Prompts string
	UserID  string
}

// KeysFor returns the keys used under scope, falling back to DefaultScope.
func KeysFor(scope string) Keys {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = DefaultScope
	}
	return Keys{Prompts: scope + ".prompts", UserID: scope + ".userId"}
}

// ChangeKind classifies a Change.
type ChangeKind string

const (
	ChangeLoaded   ChangeKind = "loaded"
	ChangeCreated  ChangeKind = "created"
	ChangeRated    ChangeKind = "rated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeImported ChangeKind = "imported"
)

// Change is delivered to subscribers after a successful operation so the
// presentation layer can decide when to re-render.
type Change struct {
	Kind ChangeKind
	ID   string
}

// Options tunes a PromptStore.
type Options struct {
	Scope  string
	Logger *zap.Logger
	// Now overrides the clock used for createdAt.
	Now func() time.Time
}

// PromptStore owns the in-memory prompt collection and is the only writer of
// the persisted copy. Every operation holds the store lock across its whole
// read-modify-write so concurrent callers never interleave.
type PromptStore struct {
	storage  kv.Storage
	identity *identity.Provider
	keys     Keys
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	prompts []domain.Prompt
	ready   bool

	subMu       sync.RWMutex
	subscribers map[int]func(Change)
	nextSub     int
}

// New constructs a store over storage. ids attributes ratings made through
// Rate; when nil a provider under the scope's user key is created.
func New(storage kv.Storage, ids *identity.Provider, opts Options) *PromptStore {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	keys := KeysFor(opts.Scope)
	if ids == nil {
		ids = identity.New(storage, keys.UserID, logger)
	}
	return &PromptStore{
		storage:     storage,
		identity:    ids,
		keys:        keys,
		logger:      logger,
		now:         now,
		prompts:     []domain.Prompt{},
		subscribers: make(map[int]func(Change)),
	}
}

// Keys returns the storage keys this store uses.
func (s *PromptStore) Keys() Keys {
	return s.keys
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs after the store lock is released.
func (s *PromptStore) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *PromptStore) notify(change Change) {
	s.subMu.RLock()
	subs := make([]func(Change), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(change)
	}
}

// Ready reports whether Load has run.
func (s *PromptStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// UserID returns the current profile's identifier.
func (s *PromptStore) UserID(ctx context.Context) string {
	return s.identity.GetOrCreateUserID(ctx)
}

// Snapshot returns a deep copy of the collection in persisted (creation)
// order. It is empty until Load has run.
func (s *PromptStore) Snapshot() []domain.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Prompt, len(s.prompts))
	for i, p := range s.prompts {
		out[i] = p.Clone()
	}
	return out
}

// Get returns a copy of the prompt with id.
func (s *PromptStore) Get(id string) (domain.Prompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.prompts[i].Clone(), true
	}
	return domain.Prompt{}, false
}

func (s *PromptStore) indexOf(id string) int {
	for i := range s.prompts {
		if s.prompts[i].ID == id {
			return i
		}
	}
	return -1
}

// Load replaces the in-memory collection with the persisted one, normalizing
// every record. Unreadable or unparsable data leaves an empty collection; the
// condition is logged and never returned.
func (s *PromptStore) Load(ctx context.Context) {
	s.mu.Lock()
	s.loadLocked(ctx)
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeLoaded})
}

func (s *PromptStore) loadLocked(ctx context.Context) {
	s.ready = true
	s.prompts = []domain.Prompt{}

	raw, ok, err := s.storage.Get(ctx, s.keys.Prompts)
	if err != nil {
		s.logger.Error("failed to read prompts from storage",
			zap.String("key", s.keys.Prompts),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)))
		return
	}
	if !ok {
		return
	}

	prompts, stats, err := domain.DecodeCollection([]byte(raw))
	if err != nil {
		s.logger.Error("failed to parse stored prompts", zap.String("key", s.keys.Prompts), zap.Error(err))
		return
	}
	if stats.Skipped > 0 || stats.Reassigned > 0 {
		s.logger.Warn("repaired stored prompts",
			zap.Int("records", stats.Records),
			zap.Int("skipped", stats.Skipped),
			zap.Int("reassigned_ids", stats.Reassigned))
	}
	s.prompts = prompts
	s.logger.Debug("loaded prompts", zap.Int("count", len(prompts)))
}

func (s *PromptStore) ensureLoaded(ctx context.Context) {
	if !s.ready {
		s.loadLocked(ctx)
	}
}

// Save writes the whole collection, replacing the stored value.
func (s *PromptStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *PromptStore) saveLocked(ctx context.Context) error {
	data, err := domain.EncodeCollection(s.prompts)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.keys.Prompts, string(data)); err != nil {
		return fmt.Errorf("save prompts: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// Create validates, appends and persists a new prompt. Content must be
// non-empty after trimming; a blank title becomes "Untitled". When the write
// fails the collection is left as it was.
func (s *PromptStore) Create(ctx context.Context, title, content string) (domain.Prompt, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Prompt{}, fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultTitle
	}

	s.mu.Lock()
	s.ensureLoaded(ctx)
	p := domain.NewPrompt(title, content, s.now())
	for s.indexOf(p.ID) >= 0 {
		p.ID = domain.NewID()
	}
	s.prompts = append(s.prompts, p)
	if err := s.saveLocked(ctx); err != nil {
		s.prompts = s.prompts[:len(s.prompts)-1]
		s.mu.Unlock()
		return domain.Prompt{}, err
	}
	s.mu.Unlock()

	s.logger.Info("prompt created", zap.String("id", p.ID))
	s.notify(Change{Kind: ChangeCreated, ID: p.ID})
	return p.Clone(), nil
}

// Rate records the current user's rating for id. See RateAs.
func (s *PromptStore) Rate(ctx context.Context, id string, stars float64) error {
	return s.RateAs(ctx, id, s.identity.GetOrCreateUserID(ctx), stars)
}

// RateAs records userID's rating for id, overwriting an earlier one. Unknown
// ids and non-finite stars are silently ignored. Other values are rounded and
// clamped to 1..5.
func (s *PromptStore) RateAs(ctx context.Context, id, userID string, stars float64) error {
	s.mu.Lock()
	s.ensureLoaded(ctx)
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.prompts[i].Clone()
	if !s.prompts[i].SetRating(userID, stars) {
		s.mu.Unlock()
		return nil
	}
	if err := s.saveLocked(ctx); err != nil {
		s.prompts[i] = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeRated, ID: id})
	return nil
}

// Delete removes id. Deleting an unknown id succeeds without writing.
func (s *PromptStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.ensureLoaded(ctx)
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	prev := s.prompts
	next := make([]domain.Prompt, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	next = append(next, prev[i+1:]...)
	s.prompts = next
	if err := s.saveLocked(ctx); err != nil {
		s.prompts = prev
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("prompt deleted", zap.String("id", id))
	s.notify(Change{Kind: ChangeDeleted, ID: id})
	return nil
}
