package analysis

import (
	"fmt"
	"time"
)

// HourlyHistory counts events per hour over the hours before now, oldest
// bucket first. Events older than the window or with a zero time are
// dropped; events after now count towards the current hour. It returns nil
// when no event falls inside the window.
func HourlyHistory(events []time.Time, now time.Time, hours int) []TrendPoint {
	if hours <= 0 {
		return nil
	}

	counts := make([]int, hours)
	seen := false
	for _, t := range events {
		if t.IsZero() {
			continue
		}
		ago := int(max(0, now.Sub(t)) / time.Hour)
		if ago >= hours {
			continue
		}
		counts[ago]++
		seen = true
	}
	if !seen {
		return nil
	}

	history := make([]TrendPoint, hours)
	for i, n := range counts {
		history[hours-1-i] = TrendPoint{Timestamp: fmt.Sprintf("%dh ago", i), Value: n}
	}
	return history
}
