package domain

import "math"

const (
	// MinStars and MaxStars bound every stored rating.
	MinStars = 1
	MaxStars = 5
)

// RatingAggregate provides average and count for a prompt's ratings.
type RatingAggregate struct {
	Average float64
	Count   int
}

// ClampStars rounds a submitted rating to the nearest integer and clamps it
// to [MinStars, MaxStars]. ok is false for NaN and infinities.
func ClampStars(stars float64) (value int, ok bool) {
	if math.IsNaN(stars) || math.IsInf(stars, 0) {
		return 0, false
	}
	rounded := math.Round(stars)
	switch {
	case rounded < MinStars:
		return MinStars, true
	case rounded > MaxStars:
		return MaxStars, true
	}
	return int(rounded), true
}

// Aggregate computes the count and the mean of ratings rounded to two
// decimals. Ties round half up. The mean is derived from the integer sum so
// no binary floating point error can move a value across a rounding boundary.
func Aggregate(ratings map[string]int) RatingAggregate {
	if len(ratings) == 0 {
		return RatingAggregate{}
	}
	var sum int64
	for _, stars := range ratings {
		sum += int64(stars)
	}
	n := int64(len(ratings))
	hundredths := (sum*200 + n) / (2 * n)
	return RatingAggregate{
		Average: float64(hundredths) / 100,
		Count:   len(ratings),
	}
}

// Recompute refreshes the derived rating fields from UserRatings.
func (p *Prompt) Recompute() {
	if p.UserRatings == nil {
		p.UserRatings = map[string]int{}
	}
	agg := Aggregate(p.UserRatings)
	p.AverageRating = agg.Average
	p.TotalRatings = agg.Count
}

// SetRating stores a user's rating, overwriting any earlier one, and
// recomputes the aggregate. It reports false when stars is not finite.
func (p *Prompt) SetRating(userID string, stars float64) bool {
	value, ok := ClampStars(stars)
	if !ok {
		return false
	}
	if p.UserRatings == nil {
		p.UserRatings = map[string]int{}
	}
	p.UserRatings[userID] = value
	p.Recompute()
	return true
}
