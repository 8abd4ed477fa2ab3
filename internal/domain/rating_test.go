package domain

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
)

func TestClampStars(t *testing.T) {
	tests := []struct {
		name   string
		stars  float64
		want   int
		wantOK bool
	}{
		{"zero", 0, 1, true},
		{"above max", 7, 5, true},
		{"six", 6, 5, true},
		{"negative", -3, 1, true},
		{"round up", 3.6, 4, true},
		{"round up small", 3.7, 4, true},
		{"round down", 2.4, 2, true},
		{"half", 2.5, 3, true},
		{"exact", 4, 4, true},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"neg inf", math.Inf(-1), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClampStars(tt.stars)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ClampStars(%v) = %d, %v, want %d, %v", tt.stars, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name      string
		ratings   map[string]int
		wantAvg   float64
		wantCount int
	}{
		{"empty", nil, 0, 0},
		{"single", map[string]int{"a": 4}, 4, 1},
		{"two", map[string]int{"a": 4, "b": 2}, 3, 2},
		{"thirds", map[string]int{"a": 3, "b": 3, "c": 4}, 3.33, 3},
		{"two thirds", map[string]int{"a": 5, "b": 5, "c": 4}, 4.67, 3},
		{"eighths half up", map[string]int{"a": 1, "b": 1, "c": 1, "d": 1, "e": 1, "f": 1, "g": 2, "h": 2}, 1.25, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.ratings)
			if got.Count != tt.wantCount {
				t.Fatalf("Count = %d, want %d", got.Count, tt.wantCount)
			}
			if got.Average != tt.wantAvg {
				t.Fatalf("Average = %v, want %v", got.Average, tt.wantAvg)
			}
		})
	}
}

func TestAggregateHalfUp(t *testing.T) {
	// 1.125 sits exactly on a rounding boundary.
	ratings := map[string]int{}
	for i := 0; i < 7; i++ {
		ratings[fmt.Sprintf("u%d", i)] = 1
	}
	ratings["u7"] = 2
	if got := Aggregate(ratings).Average; got != 1.13 {
		t.Fatalf("Average = %v, want 1.13", got)
	}
}

func TestSetRatingKeepsAggregateConsistent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3", "u4", "u5"}
	p := NewPrompt("t", "c", fixedNow)

	for i := 0; i < 200; i++ {
		user := users[rnd.Intn(len(users))]
		stars := 1 + rnd.Intn(5)
		if !p.SetRating(user, float64(stars)) {
			t.Fatalf("SetRating(%s, %d) rejected", user, stars)
		}

		var sum int
		for _, v := range p.UserRatings {
			sum += v
		}
		mean := float64(sum) / float64(len(p.UserRatings))
		want := math.Floor(mean*100+0.5) / 100
		if math.Abs(p.AverageRating-want) > 1e-9 {
			t.Fatalf("step %d: AverageRating = %v, want %v", i, p.AverageRating, want)
		}
		if p.TotalRatings != len(p.UserRatings) {
			t.Fatalf("step %d: TotalRatings = %d, want %d", i, p.TotalRatings, len(p.UserRatings))
		}
	}
}

func TestSetRatingOverwritesSameUser(t *testing.T) {
	p := NewPrompt("t", "c", fixedNow)
	p.SetRating("u1", 2)
	p.SetRating("u1", 5)

	if p.TotalRatings != 1 {
		t.Fatalf("TotalRatings = %d, want 1", p.TotalRatings)
	}
	if p.AverageRating != 5 {
		t.Fatalf("AverageRating = %v, want 5", p.AverageRating)
	}
}

func TestSetRatingRejectsNonFinite(t *testing.T) {
	p := NewPrompt("t", "c", fixedNow)
	if p.SetRating("u1", math.NaN()) {
		t.Fatalf("SetRating(NaN) accepted")
	}
	if len(p.UserRatings) != 0 {
		t.Fatalf("UserRatings = %v, want empty", p.UserRatings)
	}
}
