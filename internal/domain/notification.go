package domain

import "time"

// NotificationKind identifies notification origin.
type NotificationKind string

const (
	// NotificationAlarm marks a fired alarm.
	NotificationAlarm NotificationKind = "alarm"
	// NotificationTimer marks a completed timer.
	NotificationTimer NotificationKind = "timer"
	// NotificationWarning marks validation warnings.
	NotificationWarning NotificationKind = "warning"
)

// Shape selects acknowledgment controls.
type Shape string

const (
	// ShapeSingle shows one confirm control.
	ShapeSingle Shape = "single"
	// ShapeDual shows confirm and cancel controls.
	ShapeDual Shape = "dual"
)

// Choice is user acknowledgment result.
type Choice string

const (
	// ChoiceConfirm is the confirm control ("OK", "Dismiss", "Stop Sound").
	ChoiceConfirm Choice = "confirm"
	// ChoiceCancel is the secondary control ("Continue").
	ChoiceCancel Choice = "cancel"
	// ChoiceDismiss closes without a control (outside click or escape).
	ChoiceDismiss Choice = "dismiss"
)

// Theme is explicit presentation theme.
type Theme string

const (
	// ThemeLight is default light palette.
	ThemeLight Theme = "light"
	// ThemeDark is dark palette.
	ThemeDark Theme = "dark"
)

// NotificationOptions controls presentation shape and dismissal policy.
// Params: control labels, blocking flag, and theme.
// Returns: presentation options for one notification.
type NotificationOptions struct {
	Shape        Shape  `json:"shape"`
	ConfirmLabel string `json:"confirmLabel"`
	CancelLabel  string `json:"cancelLabel,omitempty"`
	Blocking     bool   `json:"blocking"`
	Theme        Theme  `json:"theme"`
}

// Notification is one user-facing event awaiting acknowledgment.
// Params: queue id, origin, trigger id, text, and options.
// Returns: payload for presenters and API.
type Notification struct {
	ID        string              `json:"id"`
	Kind      NotificationKind    `json:"kind"`
	SourceID  int64               `json:"sourceId,omitempty"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Options   NotificationOptions `json:"options"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Ack is acknowledgment result delivered to the notification owner.
type Ack struct {
	NotificationID string `json:"notificationId"`
	Choice         Choice `json:"choice"`
}
