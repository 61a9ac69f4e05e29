package domain

import (
	"fmt"
	"strings"
)

// SoundID identifies one entry of the fixed sound catalog.
type SoundID string

const (
	// SoundBell is the default sound.
	SoundBell SoundID = "bell"
	// SoundDigital is the digital beeper.
	SoundDigital SoundID = "digital"
	// SoundRush is the rush alarm.
	SoundRush SoundID = "rush"
)

// Sound is one catalog entry shared by alarms and timers.
// Params: display label, identifier, and bundled resource file name.
// Returns: catalog metadata for UI and player.
type Sound struct {
	Label    string  `json:"label"`
	ID       SoundID `json:"id"`
	Resource string  `json:"resource"`
}

var soundCatalog = []Sound{
	{Label: "Bell", ID: SoundBell, Resource: "bell.mp3"},
	{Label: "Digital", ID: SoundDigital, Resource: "digital.mp3"},
	{Label: "Rush", ID: SoundRush, Resource: "rush.mp3"},
}

// SoundCatalog returns the fixed catalog in display order.
// Params: none.
// Returns: copy of catalog entries.
func SoundCatalog() []Sound {
	out := make([]Sound, len(soundCatalog))
	copy(out, soundCatalog)
	return out
}

// LookupSound finds one catalog entry by identifier.
// Params: sound identifier.
// Returns: catalog entry and presence flag.
func LookupSound(id SoundID) (Sound, bool) {
	for _, sound := range soundCatalog {
		if sound.ID == id {
			return sound, true
		}
	}
	return Sound{}, false
}

// ParseSoundID normalizes and validates a sound identifier.
// Params: raw identifier; empty selects the default sound.
// Returns: catalog identifier or error for unknown values.
func ParseSoundID(raw string) (SoundID, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return SoundBell, nil
	}
	id := SoundID(value)
	if _, ok := LookupSound(id); !ok {
		return "", fmt.Errorf("unknown sound %q", raw)
	}
	return id, nil
}
