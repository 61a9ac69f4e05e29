package templatefmt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"timekeeper/internal/domain"
)

// FuncMap returns shared notification template helpers.
// Params: none.
// Returns: deterministic helper map used by config validation and runtime rendering.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"fmt12h":      Format12h,
		"fmtClock":    FormatClock,
		"fmtDuration": FormatDuration,
		"json":        MarshalJSON,
		"upper":       strings.ToUpper,
	}
}

// ParseNotificationTemplate parses one notification template with shared helpers.
// Params: template name and body.
// Returns: compiled template or parse error.
func ParseNotificationTemplate(name, body string) (*template.Template, error) {
	return template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(body)
}

// Format12h renders time of day as "h:MM AM".
// Params: domain.TimeOfDay or "HH:MM" string.
// Returns: 12-hour clock text, or input text when unparsable.
func Format12h(value any) string {
	switch typed := value.(type) {
	case domain.TimeOfDay:
		return typed.Format12h()
	case string:
		parsed, err := domain.ParseTimeOfDay(typed)
		if err != nil {
			return typed
		}
		return parsed.Format12h()
	default:
		return fmt.Sprint(value)
	}
}

// FormatClock renders whole seconds as HH:MM:SS.
// Params: seconds as int or int64.
// Returns: zero-padded clock text.
func FormatClock(value any) string {
	switch typed := value.(type) {
	case int:
		return domain.FormatClock(typed)
	case int64:
		return domain.FormatClock(int(typed))
	case time.Duration:
		return domain.FormatRemaining(typed)
	default:
		return domain.FormatClock(0)
	}
}

// FormatDuration renders duration in compact human form with one decimal precision.
// Params: template value expected as time.Duration or *time.Duration.
// Returns: formatted duration string.
func FormatDuration(value any) string {
	var duration time.Duration
	switch typed := value.(type) {
	case time.Duration:
		duration = typed
	case *time.Duration:
		if typed == nil {
			return "0.0s"
		}
		duration = *typed
	default:
		return "0.0s"
	}

	if duration < 0 {
		duration = -duration
	}
	seconds := duration.Seconds()
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%.1fh", seconds/3600)
	case seconds >= 60:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fs", seconds)
	}
}

// MarshalJSON renders value into JSON string for template embedding.
func MarshalJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "null"
	}
	return string(encoded)
}
