package service

import (
	"fmt"
	"math"
	"time"
)

// FormatElapsed renders how long ago something happened for queue cards:
// "Just now", "12m", "1h 5m", "2h".
func FormatElapsed(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes < 1 {
		return "Just now"
	}
	return formatWholeMinutes(minutes)
}

// FormatMinutes renders a duration in minutes for reports: "45m", "1h 30m".
// The total is rounded first so 119.6 reads "2h", never "1h 60m".
func FormatMinutes(minutes float64) string {
	return formatWholeMinutes(int(math.Round(minutes)))
}

func formatWholeMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours, rest := minutes/60, minutes%60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}
