package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultTitle is used whenever a prompt has no usable title.
const DefaultTitle = "Untitled"

// PreviewWords bounds the number of words shown by Preview.
const PreviewWords = 12

// Prompt is the canonical persisted prompt record.
type Prompt struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	CreatedAt     int64          `json:"createdAt"`
	UserRatings   map[string]int `json:"userRatings"`
	AverageRating float64        `json:"averageRating"`
	TotalRatings  int            `json:"totalRatings"`
}

// NewPrompt builds a fresh record from already validated title and content.
func NewPrompt(title, content string, now time.Time) Prompt {
	p := Prompt{
		ID:          NewID(),
		Title:       title,
		Content:     content,
		CreatedAt:   now.UnixMilli(),
		UserRatings: map[string]int{},
	}
	p.Recompute()
	return p
}

// Clone returns a deep copy so callers cannot mutate the store's ratings map.
func (p Prompt) Clone() Prompt {
	ratings := make(map[string]int, len(p.UserRatings))
	for user, stars := range p.UserRatings {
		ratings[user] = stars
	}
	p.UserRatings = ratings
	return p
}

// Created returns the creation timestamp as a time.Time.
func (p Prompt) Created() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

// RatingBy reports the rating a user gave, if any.
func (p Prompt) RatingBy(userID string) (int, bool) {
	stars, ok := p.UserRatings[userID]
	return stars, ok
}

// NewID returns a collision-resistant identifier made of a millisecond
// timestamp and random bits (UUIDv7). Uniqueness is not cryptographically
// guaranteed.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Preview shortens content to its first PreviewWords words, appending an
// ellipsis when anything was cut. Short content is returned unchanged.
func Preview(content string) string {
	words := strings.Fields(content)
	if len(words) <= PreviewWords {
		return content
	}
	return strings.Join(words[:PreviewWords], " ") + "…"
}

// Badge returns the upper-cased first letter of a title, or "P" when empty.
func Badge(title string) string {
	r, size := utf8.DecodeRuneInString(title)
	if size == 0 || r == utf8.RuneError {
		return "P"
	}
	return string(unicode.ToUpper(r))
}
