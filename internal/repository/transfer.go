package repository

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/prompt-library/internal/domain"
)

// Import merges a collection dump, such as one exported from a browser's
// local storage, into the store. Records go through the same normalization
// as Load; records whose id is already present are skipped. It returns the
// number of records added. data must be a JSON array; an empty payload or
// null is rejected rather than treated as an empty collection.
func (s *PromptStore) Import(ctx context.Context, data []byte) (int, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return 0, fmt.Errorf("%w: %w: expected a JSON array", domain.ErrInvalidInput, domain.ErrParseFailure)
	}
	incoming, stats, err := domain.DecodeCollection(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	s.mu.Lock()
	s.ensureLoaded(ctx)
	prevLen := len(s.prompts)
	seen := make(map[string]struct{}, prevLen+len(incoming))
	for _, p := range s.prompts {
		seen[p.ID] = struct{}{}
	}
	for _, p := range incoming {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		s.prompts = append(s.prompts, p)
	}
	added := len(s.prompts) - prevLen
	if added == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	if err := s.saveLocked(ctx); err != nil {
		s.prompts = s.prompts[:prevLen]
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	s.logger.Info("prompts imported",
		zap.Int("added", added),
		zap.Int("skipped", stats.Skipped+len(incoming)-added))
	s.notify(Change{Kind: ChangeImported})
	return added, nil
}

// Export serializes the collection in the canonical persisted schema.
func (s *PromptStore) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return domain.EncodeCollection(s.prompts)
}
