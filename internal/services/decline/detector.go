// Package decline derives the two decline flags from a close history.
// Windows count points, not calendar days.
package decline

import "StockWatch/internal/domain/models"

const (
	consecutiveWindow = 3
	recentWindow      = 5
	recentThreshold   = 2
)

// Flags are the decline signals of one ticker.
type Flags struct {
	DeclinedLast3Days          bool
	MoreThan2DeclinesLast5Days bool
}

// Any reports whether at least one flag is raised.
func (f Flags) Any() bool { return f.DeclinedLast3Days || f.MoreThan2DeclinesLast5Days }

// Evaluate computes both flags. history must be ascending by date.
func Evaluate(history []models.PricePoint) Flags {
	if len(history) < 2 {
		return Flags{}
	}
	return Flags{
		DeclinedLast3Days:          declinedConsecutively(history, consecutiveWindow),
		MoreThan2DeclinesLast5Days: DeclineCount(history, recentWindow) > recentThreshold,
	}
}

// DeclineCount counts day-over-day drops among the last window pairs, or
// among all available pairs when the history is shorter.
func DeclineCount(history []models.PricePoint, window int) int {
	if window <= 0 || len(history) < 2 {
		return 0
	}
	start := len(history) - window
	if start < 1 {
		start = 1
	}
	n := 0
	for i := start; i < len(history); i++ {
		if history[i].Close.LessThan(history[i-1].Close) {
			n++
		}
	}
	return n
}

// declinedConsecutively needs the full window of comparisons.
func declinedConsecutively(history []models.PricePoint, window int) bool {
	if len(history) < window+1 {
		return false
	}
	return DeclineCount(history, window) == window
}
