package domain

import (
	"fmt"
	"time"
)

// FormatClock renders whole seconds as "HH:MM:SS".
// Params: seconds count; negatives render as zero.
// Returns: zero-padded text, hours are not wrapped at 24.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatRemaining renders a duration floored to whole seconds.
func FormatRemaining(d time.Duration) string {
	return FormatClock(int(d / time.Second))
}
