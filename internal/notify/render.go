package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"
	"timekeeper/internal/templatefmt"
)

// Renderer builds notification text from configured templates.
// Params: compiled alarm/timer title and message templates.
// Returns: title/message pairs for schedulers.
type Renderer struct {
	alarmTitle   *template.Template
	alarmMessage *template.Template
	timerTitle   *template.Template
	timerMessage *template.Template
}

// NewRenderer compiles templates; empty bodies fall back to built-in defaults.
// Params: notify templates from config.
// Returns: renderer or parse error.
func NewRenderer(cfg config.NotifyTemplates) (*Renderer, error) {
	defaults := config.DefaultTemplates()
	pick := func(value, fallback string) string {
		if value == "" {
			return fallback
		}
		return value
	}

	var r Renderer
	for _, item := range []struct {
		name string
		body string
		dst  **template.Template
	}{
		{"alarm_title", pick(cfg.AlarmTitle, defaults.AlarmTitle), &r.alarmTitle},
		{"alarm_message", pick(cfg.AlarmMessage, defaults.AlarmMessage), &r.alarmMessage},
		{"timer_title", pick(cfg.TimerTitle, defaults.TimerTitle), &r.timerTitle},
		{"timer_message", pick(cfg.TimerMessage, defaults.TimerMessage), &r.timerMessage},
	} {
		tmpl, err := templatefmt.ParseNotificationTemplate(item.name, item.body)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", item.name, err)
		}
		*item.dst = tmpl
	}
	return &r, nil
}

// DefaultRenderer returns renderer with built-in templates.
func DefaultRenderer() *Renderer {
	r, err := NewRenderer(config.NotifyTemplates{})
	if err != nil {
		panic(err)
	}
	return r
}

// Alarm renders fired alarm text.
// Params: alarm record.
// Returns: title and message; template failures fall back to plain text.
func (r *Renderer) Alarm(alarm domain.Alarm) (string, string) {
	data := map[string]any{
		"ID":    alarm.ID,
		"Name":  alarm.DisplayName(),
		"Time":  alarm.Time,
		"Sound": string(alarm.Sound),
	}
	title := execute(r.alarmTitle, data, "⏰ "+alarm.DisplayName()+"!")
	message := execute(r.alarmMessage, data, "Alarm for "+alarm.Time.Format12h())
	return title, message
}

// Timer renders completed timer text.
// Params: timer record.
// Returns: title and message; template failures fall back to plain text.
func (r *Renderer) Timer(timer domain.Timer) (string, string) {
	data := map[string]any{
		"ID":     timer.ID,
		"Name":   timer.Title,
		"Target": timer.TargetTime,
		"Sound":  string(timer.Sound),
		"Repeat": timer.RepeatSound,
	}
	title := execute(r.timerTitle, data, "⏱ Timer Finished!")
	message := execute(r.timerMessage, data, fmt.Sprintf("Timer %q has reached zero", timer.Title))
	return title, message
}

func execute(tmpl *template.Template, data any, fallback string) string {
	if tmpl == nil {
		return fallback
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return fallback
	}
	return out.String()
}
