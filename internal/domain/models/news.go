package models

import (
	"encoding/json"
	"time"
)

const (
	MinRating = -10
	MaxRating = 10
)

// RatedNews is a news item as delivered by a news-rating provider.
type RatedNews struct {
	Name   string
	Date   time.Time
	Rating int
}

// NewsItem is a rated news item classified against a sell threshold.
type NewsItem struct {
	Name   string
	Date   time.Time
	Rating int
	Sell   bool
}

func (n NewsItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name   string `json:"name"`
		Date   string `json:"date"`
		Rating int    `json:"rating"`
		Sell   bool   `json:"sell"`
	}{
		Name:   n.Name,
		Date:   n.Date.Format(DateLayout),
		Rating: n.Rating,
		Sell:   n.Sell,
	})
}

// ClampRating bounds r to [MinRating, MaxRating].
func ClampRating(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// ValidRating reports whether r lies in [MinRating, MaxRating].
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

// Classify marks a rated item as SELL when its rating is at or below threshold.
func Classify(item RatedNews, threshold int) NewsItem {
	return NewsItem{
		Name:   item.Name,
		Date:   item.Date,
		Rating: item.Rating,
		Sell:   item.Rating <= threshold,
	}
}
