package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with minute resolution and no date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses strict "HH:MM" 24-hour notation.
// Params: raw time text.
// Returns: parsed time of day or format error.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("time %q must use HH:MM format", raw)
	}
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time %q must use HH:MM format", raw)
	}
	return TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute()}, nil
}

// TimeOfDayOf truncates timestamp to minute-resolution time of day.
func TimeOfDayOf(ts time.Time) TimeOfDay {
	return TimeOfDay{Hour: ts.Hour(), Minute: ts.Minute()}
}

// String renders "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Format12h renders 12-hour clock text like "7:30 AM".
// Params: none.
// Returns: display text for notifications.
func (t TimeOfDay) Format12h() string {
	period := "AM"
	if t.Hour >= 12 {
		period = "PM"
	}
	hour := t.Hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, t.Minute, period)
}

// MarshalJSON encodes time of day as "HH:MM" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode time of day: %w", err)
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
