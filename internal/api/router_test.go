package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"timekeeper/internal/alarm"
	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"
	"timekeeper/internal/notify"
	"timekeeper/internal/store"
	"timekeeper/internal/timer"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type silentSound struct{}

func (silentSound) Play(domain.SoundID, bool) {}
func (silentSound) Stop(domain.SoundID)       {}

type apiHarness struct {
	server  *httptest.Server
	alarms  *alarm.Scheduler
	timers  *timer.Scheduler
	channel *notify.Channel
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()

	clk := fixedClock{now: time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore()
	m := metrics.New()
	channel := notify.NewChannel(domain.ThemeLight, nil, nil, m, clk.Now)
	t.Cleanup(channel.Close)

	alarms := alarm.NewScheduler(alarm.Deps{Clock: clk, Store: st, Sound: silentSound{}, Notifier: channel, Metrics: m})
	timers := timer.NewScheduler(timer.Deps{Clock: clk, Store: st, Sound: silentSound{}, Notifier: channel, Metrics: m})

	router := NewRouter(Deps{
		Alarms:        alarms,
		Timers:        timers,
		Notifications: channel,
		Metrics:       m,
	}, Options{AllowOrigins: []string{"http://localhost:3000"}})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiHarness{server: server, alarms: alarms, timers: timers, channel: channel}
}

func (h *apiHarness) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, payload
}

func TestAlarmEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	status, body := h.do(t, http.MethodPost, "/api/alarms", `{"name":"Gym","time":"07:30","sound":"rush"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", status, body)
	}
	var created struct {
		ID        int64  `json:"id"`
		Time      string `json:"time"`
		Remaining string `json:"remaining"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Time != "07:30" || created.Remaining != "00:30:00" {
		t.Fatalf("unexpected created alarm %s", body)
	}

	if status, _ := h.do(t, http.MethodPost, "/api/alarms", `{"time":"7:30"}`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed time, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/alarms", `{"time":`); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", status)
	}

	status, body = h.do(t, http.MethodGet, "/api/alarms", "")
	if status != http.StatusOK || !strings.Contains(string(body), `"remaining":"00:30:00"`) {
		t.Fatalf("list status=%d body=%s", status, body)
	}

	path := "/api/alarms/" + strconv.FormatInt(created.ID, 10)
	if status, _ := h.do(t, http.MethodDelete, path, ""); status != http.StatusNoContent {
		t.Fatalf("delete status=%d", status)
	}
	if status, _ := h.do(t, http.MethodDelete, path, ""); status != http.StatusNotFound {
		t.Fatalf("second delete status=%d", status)
	}
	if status, _ := h.do(t, http.MethodDelete, "/api/alarms/abc", ""); status != http.StatusBadRequest {
		t.Fatalf("non-numeric id status=%d", status)
	}
}

func TestTimerEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)

	status, body := h.do(t, http.MethodPost, "/api/timers", `{"minutes":1,"seconds":30,"sound":"digital","repeatSound":true}`)
	if status != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", status, body)
	}
	var created struct {
		ID      int64  `json:"id"`
		Title   string `json:"title"`
		Display string `json:"display"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Title != "Timer 1" || created.Display != "00:01:30" {
		t.Fatalf("unexpected timer %s", body)
	}
	base := "/api/timers/" + strconv.FormatInt(created.ID, 10)

	if status, _ := h.do(t, http.MethodPost, base+"/start", ""); status != http.StatusNoContent {
		t.Fatalf("start status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPut, base, `{"seconds":5}`); status != http.StatusConflict {
		t.Fatalf("edit running status=%d", status)
	}
	if status, _ := h.do(t, http.MethodDelete, base, ""); status != http.StatusConflict {
		t.Fatalf("delete running status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPost, base+"/pause", ""); status != http.StatusNoContent {
		t.Fatalf("pause status=%d", status)
	}
	status, body = h.do(t, http.MethodPut, base, `{"seconds":5}`)
	if status != http.StatusOK || !strings.Contains(string(body), `"targetTime":5`) {
		t.Fatalf("edit status=%d body=%s", status, body)
	}
	if status, _ := h.do(t, http.MethodPost, base+"/rewind", ""); status != http.StatusNotFound {
		t.Fatalf("unknown action status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/timers/999/start", ""); status != http.StatusNotFound {
		t.Fatalf("unknown timer status=%d", status)
	}

	status, body = h.do(t, http.MethodGet, "/api/timers", "")
	if status != http.StatusOK || !strings.Contains(string(body), `"activeId":`+strconv.FormatInt(created.ID, 10)) {
		t.Fatalf("list status=%d body=%s", status, body)
	}

	if status, _ := h.do(t, http.MethodPost, "/api/timers", `{}`); status != http.StatusBadRequest {
		t.Fatalf("zero duration status=%d", status)
	}
	head, ok := h.channel.Current()
	if !ok || head.Title != "Invalid Timer" {
		t.Fatalf("expected warning notification, got %+v", head)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	ctx := context.Background()
	if _, err := h.alarms.Add(ctx, "", "07:00", ""); err != nil {
		t.Fatalf("add alarm: %v", err)
	}
	h.alarms.Tick(ctx)

	status, body := h.do(t, http.MethodGet, "/api/notifications", "")
	var listing struct {
		Current *domain.Notification  `json:"current"`
		Pending []domain.Notification `json:"pending"`
	}
	if err := json.Unmarshal(body, &listing); err != nil || status != http.StatusOK {
		t.Fatalf("list status=%d err=%v", status, err)
	}
	if listing.Current == nil || !listing.Current.Options.Blocking || len(listing.Pending) != 1 {
		t.Fatalf("unexpected listing %s", body)
	}
	id := listing.Current.ID

	if status, _ := h.do(t, http.MethodPost, "/api/notifications/"+id+"/dismiss", ""); status != http.StatusConflict {
		t.Fatalf("dismiss blocking status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/notifications/"+id+"/ack", `{"choice":"cancel"}`); status != http.StatusBadRequest {
		t.Fatalf("cancel on single shape status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/notifications/"+id+"/ack", `{"choice":"confirm"}`); status != http.StatusNoContent {
		t.Fatalf("ack status=%d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/notifications/"+id+"/ack", ""); status != http.StatusNotFound {
		t.Fatalf("second ack status=%d", status)
	}
	if len(h.alarms.List()) != 0 {
		t.Fatalf("acknowledged alarm must be removed")
	}
}

func TestHealthMetricsAndCORS(t *testing.T) {
	t.Parallel()

	h := newAPIHarness(t)
	if status, body := h.do(t, http.MethodGet, "/healthz", ""); status != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("health status=%d body=%s", status, body)
	}
	h.timers.Tick(context.Background())
	if status, body := h.do(t, http.MethodGet, "/metrics", ""); status != http.StatusOK ||
		!strings.Contains(string(body), `timekeeper_scheduler_ticks_total{scheduler="timer"} 1`) {
		t.Fatalf("metrics status=%d body=%s", status, body)
	}
	if status, body := h.do(t, http.MethodGet, "/api/sounds", ""); status != http.StatusOK || !strings.Contains(string(body), `"bell.mp3"`) {
		t.Fatalf("sounds status=%d body=%s", status, body)
	}

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/api/alarms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cors request: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}
