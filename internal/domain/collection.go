package domain

import (
	"encoding/json"
	"fmt"
)

// MigrationStats describes what DecodeCollection had to repair.
type MigrationStats struct {
	Records    int
	Skipped    int
	Reassigned int
}

// DecodeCollection parses a persisted collection and normalizes every
// element. Elements that are not objects are skipped. A duplicated id is
// replaced with a fresh one so ids stay unique. An empty payload is an empty
// collection.
func DecodeCollection(data []byte) ([]Prompt, MigrationStats, error) {
	var stats MigrationStats
	if len(data) == 0 {
		return []Prompt{}, stats, nil
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, stats, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	prompts := make([]Prompt, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if _, ok := item.(map[string]any); !ok {
			stats.Skipped++
			continue
		}
		p := Normalize(item)
		if _, dup := seen[p.ID]; dup {
			p.ID = NewID()
			stats.Reassigned++
		}
		seen[p.ID] = struct{}{}
		prompts = append(prompts, p)
	}
	stats.Records = len(prompts)
	return prompts, stats, nil
}

// EncodeCollection serializes prompts in the canonical persisted schema.
func EncodeCollection(prompts []Prompt) ([]byte, error) {
	if prompts == nil {
		prompts = []Prompt{}
	}
	data, err := json.Marshal(prompts)
	if err != nil {
		return nil, fmt.Errorf("encode prompts: %w", err)
	}
	return data, nil
}
