package e2e

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestServiceSmokeTimerCompletes(t *testing.T) {
	listen, baseURL := listenURL(t)
	dataDir := t.TempDir()

	configPath := writeConfig(t, fmt.Sprintf(`
[service]
name = "timekeeper"
tick_interval_ms = 20
location = "UTC"

[log.console]
enabled = true
level = "error"

[storage]
backend = "file"
dir = %q

[notify]
theme = "dark"

[http]
enabled = true
listen = %q
`, dataDir, listen))

	service := newServiceFromConfig(t, configPath)
	cancel, done := runService(t, service)
	defer cancel()
	waitReady(t, baseURL)

	if status := call(t, http.MethodGet, baseURL+"/healthz", nil, nil); status != http.StatusOK {
		t.Fatalf("expected health 200, got %d", status)
	}

	var created struct {
		ID int64 `json:"id"`
	}
	settings := map[string]any{"title": "Tea", "minutes": 0, "seconds": 2, "sound": "digital", "repeatSound": true}
	if status := call(t, http.MethodPost, baseURL+"/api/timers", settings, &created); status != http.StatusCreated {
		t.Fatalf("create timer status=%d", status)
	}
	timerURL := baseURL + "/api/timers/" + strconv.FormatInt(created.ID, 10)
	if status := call(t, http.MethodPost, timerURL+"/start", nil, nil); status != http.StatusNoContent {
		t.Fatalf("start timer status=%d", status)
	}

	var listing notificationsView
	waitFor(t, 5*time.Second, func() bool {
		listing = notificationsView{}
		call(t, http.MethodGet, baseURL+"/api/notifications", nil, &listing)
		return listing.Current != nil
	})
	head := listing.Current
	if head.Kind != "timer" || head.Options.Shape != "dual" || head.Options.ConfirmLabel != "Stop Sound" {
		t.Fatalf("unexpected timer notification %+v", head)
	}
	if head.Options.Theme != "dark" || !strings.Contains(head.Message, "Tea") {
		t.Fatalf("unexpected rendering %+v", head)
	}

	var timers timerListView
	call(t, http.MethodGet, baseURL+"/api/timers", nil, &timers)
	if len(timers.Timers) != 1 || timers.Timers[0].IsRunning || timers.Timers[0].CurrentTime != 2 {
		t.Fatalf("completed timer must reset and stop: %+v", timers.Timers)
	}

	ack := map[string]string{"choice": "cancel"}
	if status := call(t, http.MethodPost, baseURL+"/api/notifications/"+head.ID+"/ack", ack, nil); status != http.StatusNoContent {
		t.Fatalf("ack status=%d", status)
	}

	cancel()
	waitServiceStop(t, done)

	raw, err := os.ReadFile(filepath.Join(dataDir, "timer-page-timers.json"))
	if err != nil {
		t.Fatalf("read persisted timers: %v", err)
	}
	if !strings.Contains(string(raw), `"title":"Tea"`) || !strings.Contains(string(raw), `"isRunning":false`) {
		t.Fatalf("unexpected persisted timers %s", raw)
	}
}
