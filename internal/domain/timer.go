package domain

// Timer is one reusable countdown.
// Params: duration fields, playback options, and countdown state in seconds.
// Returns: persisted timer record.
type Timer struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Hours       int     `json:"hours"`
	Minutes     int     `json:"minutes"`
	Seconds     int     `json:"seconds"`
	Sound       SoundID `json:"sound"`
	RepeatSound bool    `json:"repeatSound"`
	CurrentTime int     `json:"currentTime"`
	TargetTime  int     `json:"targetTime"`
	IsRunning   bool    `json:"isRunning"`
}

// TimerSettings carries user-editable timer configuration.
type TimerSettings struct {
	Title       string  `json:"title,omitempty"`
	Hours       int     `json:"hours"`
	Minutes     int     `json:"minutes"`
	Seconds     int     `json:"seconds"`
	Sound       SoundID `json:"sound"`
	RepeatSound bool    `json:"repeatSound"`
}

// MaxTimerHours bounds the hours field of timer settings.
const MaxTimerHours = 99

// MaxTimerSeconds is the longest countdown, 99:59:59.
const MaxTimerSeconds = MaxTimerHours*3600 + 59*60 + 59

// InRange reports whether every field is non-negative and the total fits MaxTimerSeconds.
// Fields are checked one by one first so TotalSeconds cannot overflow.
func (s TimerSettings) InRange() bool {
	if s.Hours < 0 || s.Minutes < 0 || s.Seconds < 0 {
		return false
	}
	if s.Hours > MaxTimerHours || s.Minutes > MaxTimerSeconds/60 || s.Seconds > MaxTimerSeconds {
		return false
	}
	return s.TotalSeconds() <= MaxTimerSeconds
}

// TotalSeconds converts duration fields to seconds.
func (s TimerSettings) TotalSeconds() int {
	return s.Hours*3600 + s.Minutes*60 + s.Seconds
}

// Display renders remaining time for UI.
func (t Timer) Display() string {
	return FormatClock(t.CurrentTime)
}
