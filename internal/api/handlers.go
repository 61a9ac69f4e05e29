package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/notify"
	"timekeeper/internal/timer"

	"github.com/go-chi/chi/v5"
)

var errUnknownTarget = errors.New("not found")

type alarmRequest struct {
	Name  string `json:"name"`
	Time  string `json:"time"`
	Sound string `json:"sound"`
}

type alarmView struct {
	domain.Alarm
	Remaining string `json:"remaining"`
}

type timerView struct {
	domain.Timer
	Display string `json:"display"`
}

type ackRequest struct {
	Choice domain.Choice `json:"choice"`
}

func (h *handlers) listSounds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sounds": domain.SoundCatalog()})
}

func (h *handlers) listAlarms(w http.ResponseWriter, _ *http.Request) {
	alarms := h.alarms.List()
	views := make([]alarmView, 0, len(alarms))
	for _, alarm := range alarms {
		views = append(views, alarmView{Alarm: alarm, Remaining: h.alarms.TimeRemaining(alarm.Time)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alarms": views})
}

func (h *handlers) createAlarm(w http.ResponseWriter, r *http.Request) {
	var req alarmRequest
	if !h.decode(w, r, &req) {
		return
	}
	alarm, err := h.alarms.Add(r.Context(), req.Name, req.Time, req.Sound)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alarmView{Alarm: alarm, Remaining: h.alarms.TimeRemaining(alarm.Time)})
}

func (h *handlers) deleteAlarm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if !h.alarms.Remove(r.Context(), id) {
		h.writeError(w, errUnknownTarget)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listTimers(w http.ResponseWriter, _ *http.Request) {
	timers := h.timers.List()
	views := make([]timerView, 0, len(timers))
	for _, t := range timers {
		views = append(views, timerView{Timer: t, Display: t.Display()})
	}
	var activeID *int64
	if active, ok := h.timers.Active(); ok {
		activeID = &active.ID
	}
	writeJSON(w, http.StatusOK, map[string]any{"timers": views, "activeId": activeID})
}

func (h *handlers) createTimer(w http.ResponseWriter, r *http.Request) {
	var req domain.TimerSettings
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.timers.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, timerView{Timer: created, Display: created.Display()})
}

func (h *handlers) editTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req domain.TimerSettings
	if !h.decode(w, r, &req) {
		return
	}
	edited, err := h.timers.Edit(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, timerView{Timer: edited, Display: edited.Display()})
}

func (h *handlers) deleteTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.timers.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) timerAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var err error
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		err = h.timers.Start(r.Context(), id)
	case "pause":
		err = h.timers.Pause(r.Context(), id)
	case "reset":
		err = h.timers.Reset(r.Context(), id)
	default:
		h.writeError(w, fmt.Errorf("action %q: %w", action, errUnknownTarget))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) listNotifications(w http.ResponseWriter, _ *http.Request) {
	var current *domain.Notification
	if head, ok := h.notifications.Current(); ok {
		current = &head
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"pending": h.notifications.Pending(),
	})
}

func (h *handlers) acknowledge(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Choice == "" {
		req.Choice = domain.ChoiceConfirm
	}
	if err := h.notifications.Acknowledge(chi.URLParam(r, "id"), req.Choice); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Dismiss(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, apperr.Validation("id must be an integer"))
		return 0, false
	}
	return id, true
}

// decode reads JSON body with size limit; empty bodies decode to zero value.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, apperr.Mark(apperr.KindValidation, fmt.Errorf("decode body: %w", err)))
		return false
	}
	return true
}

// writeError maps error kinds to HTTP status codes.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errUnknownTarget), errors.Is(err, timer.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, notify.ErrInvalidChoice), apperr.Is(err, apperr.KindValidation):
		status = http.StatusBadRequest
	case errors.Is(err, notify.ErrBlocking), errors.Is(err, notify.ErrNotPresented), apperr.Is(err, apperr.KindInvariant):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
