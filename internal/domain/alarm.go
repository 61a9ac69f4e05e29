package domain

import "strings"

// Alarm is one daily wall-clock trigger.
// Params: stable id, optional name, time of day, and sound reference.
// Returns: persisted alarm record.
type Alarm struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Time  TimeOfDay `json:"time"`
	Sound SoundID   `json:"sound"`
}

// DisplayName returns alarm name or generic fallback.
func (a Alarm) DisplayName() string {
	if name := strings.TrimSpace(a.Name); name != "" {
		return name
	}
	return "Alarm"
}
