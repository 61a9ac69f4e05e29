package templatefmt

import (
	"bytes"
	"testing"
	"time"

	"timekeeper/internal/domain"
)

func TestHelpers(t *testing.T) {
	t.Parallel()

	if got := Format12h(domain.TimeOfDay{Hour: 19, Minute: 5}); got != "7:05 PM" {
		t.Fatalf("unexpected 12h format %q", got)
	}
	if got := Format12h("06:00"); got != "6:00 AM" {
		t.Fatalf("unexpected 12h format for string %q", got)
	}
	if got := Format12h("bogus"); got != "bogus" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := FormatClock(3725); got != "01:02:05" {
		t.Fatalf("unexpected clock %q", got)
	}
	if got := FormatDuration(90 * time.Second); got != "1.5m" {
		t.Fatalf("unexpected duration %q", got)
	}
}

func TestParseNotificationTemplateMissingKey(t *testing.T) {
	t.Parallel()

	tmpl, err := ParseNotificationTemplate("title", "{{ .Name }} at {{ fmt12h .Time }}")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, map[string]any{"Name": "Gym", "Time": domain.TimeOfDay{Hour: 6}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.String() != "Gym at 6:00 AM" {
		t.Fatalf("unexpected render %q", out.String())
	}

	out.Reset()
	if err := tmpl.Execute(&out, map[string]any{"Name": "Gym"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
