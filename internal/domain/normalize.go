package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Normalize reshapes one decoded persisted record into the canonical schema.
// It accepts any value produced by encoding/json (objects as map[string]any)
// and never fails:
//
//   - id: non-empty string kept; finite number formatted; otherwise NewID().
//   - title: trimmed string; "Untitled" when missing or blank.
//   - content: string; "" when missing or not a string.
//   - createdAt: number of milliseconds within int64 range, or an RFC 3339
//     string; 0 otherwise.
//   - userRatings: object entries with numeric values, clamped to [1,5] and
//     rounded; non-numeric values, empty keys and non-object maps are dropped.
//   - averageRating, totalRatings: always recomputed, stored values ignored.
//
// Apart from the id fallback the result depends only on raw.
func Normalize(raw any) Prompt {
	obj, _ := raw.(map[string]any)

	p := Prompt{
		ID:          normalizeID(obj["id"]),
		Title:       normalizeTitle(obj["title"]),
		Content:     asString(obj["content"]),
		CreatedAt:   normalizeTimestamp(obj["createdAt"]),
		UserRatings: normalizeRatings(obj["userRatings"]),
	}
	p.Recompute()
	return p
}

func normalizeID(v any) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	if n, ok := asNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return NewID()
}

func normalizeTitle(v any) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return DefaultTitle
}

func normalizeTimestamp(v any) int64 {
	if n, ok := asNumber(v); ok {
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0
		}
		return int64(n)
	}
	if s, ok := v.(string); ok {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return ts.UnixMilli()
		}
	}
	return 0
}

func normalizeRatings(v any) map[string]int {
	out := map[string]int{}
	obj, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for user, raw := range obj {
		if user == "" {
			continue
		}
		n, ok := asNumber(raw)
		if !ok {
			continue
		}
		if stars, ok := ClampStars(n); ok {
			out[user] = stars
		}
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asNumber accepts JSON numbers in the shapes encoding/json and Go callers
// produce. Strings and booleans are not numbers.
func asNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}
