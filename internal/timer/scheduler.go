package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"timekeeper/internal/apperr"
	"timekeeper/internal/clock"
	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"
	"timekeeper/internal/notify"
	"timekeeper/internal/store"
)

var (
	// ErrTimerRunning rejects edit, reset, and delete on a running timer.
	ErrTimerRunning = apperr.Mark(apperr.KindInvariant, errors.New("timer is running"))
	// ErrNotFound indicates unknown timer ID.
	ErrNotFound = errors.New("timer not found")
)

const (
	invalidTitle   = "Invalid Timer"
	invalidMessage = "Please set a timer duration greater than 0"
)

// SoundPlayer starts and stops catalog sounds.
type SoundPlayer interface {
	Play(id domain.SoundID, loop bool)
	Stop(id domain.SoundID)
}

// Notifier enqueues notifications for presentation.
type Notifier interface {
	Present(n domain.Notification, onClose func(domain.Ack)) string
}

// Deps bundles scheduler collaborators.
type Deps struct {
	Clock    clock.Clock
	Store    store.Store
	Sound    SoundPlayer
	Notifier Notifier
	Renderer *notify.Renderer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Scheduler owns reusable countdown timers.
// Params: built by NewScheduler; all methods are safe for concurrent use.
// Returns: lifecycle operations and per-second countdown.
type Scheduler struct {
	clock    clock.Clock
	store    store.Store
	sound    SoundPlayer
	notifier Notifier
	renderer *notify.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	timers    []domain.Timer
	activeID  int64
	hasActive bool
	lastID    int64
}

// NewScheduler creates scheduler with no timers; call Load to restore.
func NewScheduler(deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = notify.DefaultRenderer()
	}
	return &Scheduler{
		clock:    deps.Clock,
		store:    deps.Store,
		sound:    deps.Sound,
		notifier: deps.Notifier,
		renderer: renderer,
		logger:   logger.With("component", "timer"),
		metrics:  deps.Metrics,
		timers:   []domain.Timer{},
	}
}

// Load restores timers from store.
// Params: context for store access.
// Returns: nothing; display-active becomes the first running timer, else the first timer.
func (s *Scheduler) Load(ctx context.Context) {
	timers, err := store.DecodeCollection[domain.Timer](ctx, s.store, store.KeyTimers)
	if err != nil {
		s.metrics.PersistenceFailed(store.KeyTimers)
		s.logger.Warn("timer load failed; starting empty", "error", err)
		timers = []domain.Timer{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = make([]domain.Timer, 0, len(timers))
	for _, t := range timers {
		s.timers = append(s.timers, normalize(t))
		if t.ID > s.lastID {
			s.lastID = t.ID
		}
	}
	s.hasActive = false
	for _, t := range s.timers {
		if t.IsRunning {
			s.setActiveLocked(t.ID)
			break
		}
	}
	if !s.hasActive && len(s.timers) > 0 {
		s.setActiveLocked(s.timers[0].ID)
	}
	s.logger.Info("timers loaded", "count", len(s.timers))
}

// normalize clamps loaded countdown state into 0..target.
func normalize(t domain.Timer) domain.Timer {
	if t.TargetTime < 0 {
		t.TargetTime = 0
	}
	if t.CurrentTime < 0 || t.CurrentTime > t.TargetTime {
		t.CurrentTime = t.TargetTime
	}
	return t
}

// Create validates settings and appends an idle timer.
// Params: timer settings; empty title becomes "Timer N".
// Returns: created timer or ValidationError (a warning notification is also enqueued).
func (s *Scheduler) Create(ctx context.Context, settings domain.TimerSettings) (domain.Timer, error) {
	soundID, err := s.validate(settings)
	if err != nil {
		return domain.Timer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	title := strings.TrimSpace(settings.Title)
	if title == "" {
		title = fmt.Sprintf("Timer %d", len(s.timers)+1)
	}
	target := settings.TotalSeconds()
	t := domain.Timer{
		ID:          s.nextIDLocked(),
		Title:       title,
		Hours:       settings.Hours,
		Minutes:     settings.Minutes,
		Seconds:     settings.Seconds,
		Sound:       soundID,
		RepeatSound: settings.RepeatSound,
		CurrentTime: target,
		TargetTime:  target,
	}
	s.timers = append(s.timers, t)
	s.setActiveLocked(t.ID)
	s.persistLocked(ctx)
	s.logger.Info("timer created", "id", t.ID, "title", t.Title, "target", t.TargetTime)
	return t, nil
}

// Edit overwrites settings of an idle timer.
// Params: timer ID and new settings; title is kept when empty.
// Returns: updated timer, ErrTimerRunning, ErrNotFound, or ValidationError.
func (s *Scheduler) Edit(ctx context.Context, id int64, settings domain.TimerSettings) (domain.Timer, error) {
	s.mu.Lock()
	idx, err := s.idleIndexLocked(id)
	s.mu.Unlock()
	if err != nil {
		return domain.Timer{}, err
	}
	soundID, err := s.validate(settings)
	if err != nil {
		return domain.Timer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: state may have changed while validating.
	if idx, err = s.idleIndexLocked(id); err != nil {
		return domain.Timer{}, err
	}
	t := &s.timers[idx]
	if title := strings.TrimSpace(settings.Title); title != "" {
		t.Title = title
	}
	t.Hours = settings.Hours
	t.Minutes = settings.Minutes
	t.Seconds = settings.Seconds
	t.Sound = soundID
	t.RepeatSound = settings.RepeatSound
	t.TargetTime = settings.TotalSeconds()
	t.CurrentTime = t.TargetTime
	s.setActiveLocked(id)
	s.persistLocked(ctx)
	s.logger.Info("timer edited", "id", id, "target", t.TargetTime)
	return *t, nil
}

// Start runs one timer and pauses all others.
// Params: timer ID.
// Returns: ErrNotFound for unknown IDs; starting a running timer is a no-op.
func (s *Scheduler) Start(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	if s.timers[idx].IsRunning {
		return nil
	}
	for i := range s.timers {
		s.timers[i].IsRunning = i == idx
	}
	s.setActiveLocked(id)
	s.persistLocked(ctx)
	s.logger.Info("timer started", "id", id, "remaining", s.timers[idx].CurrentTime)
	return nil
}

// Pause stops countdown keeping remaining time.
// Params: timer ID.
// Returns: ErrNotFound for unknown IDs; pausing an idle timer is a no-op.
func (s *Scheduler) Pause(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrNotFound
	}
	if !s.timers[idx].IsRunning {
		return nil
	}
	s.timers[idx].IsRunning = false
	s.persistLocked(ctx)
	s.logger.Info("timer paused", "id", id, "remaining", s.timers[idx].CurrentTime)
	return nil
}

// Reset restores remaining time to target on an idle timer.
// Params: timer ID.
// Returns: ErrTimerRunning or ErrNotFound.
func (s *Scheduler) Reset(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.idleIndexLocked(id)
	if err != nil {
		return err
	}
	s.timers[idx].CurrentTime = s.timers[idx].TargetTime
	s.persistLocked(ctx)
	return nil
}

// Delete removes an idle timer.
// Params: timer ID.
// Returns: ErrTimerRunning or ErrNotFound; display-active falls back to the first remaining timer.
func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.idleIndexLocked(id)
	if err != nil {
		return err
	}
	s.timers = append(s.timers[:idx], s.timers[idx+1:]...)
	if s.hasActive && s.activeID == id {
		s.hasActive = false
		if len(s.timers) > 0 {
			s.setActiveLocked(s.timers[0].ID)
		}
	}
	s.persistLocked(ctx)
	s.logger.Info("timer deleted", "id", id)
	return nil
}

// Tick advances every running timer by one second.
// Params: context for persistence.
// Returns: nothing; completed timers reset, play sound, and enqueue a notification.
func (s *Scheduler) Tick(ctx context.Context) {
	s.metrics.Tick("timer")

	s.mu.Lock()
	var completed []domain.Timer
	changed := false
	for i := range s.timers {
		t := &s.timers[i]
		if !t.IsRunning {
			continue
		}
		changed = true
		next := t.CurrentTime - 1
		if next > 0 {
			t.CurrentTime = next
			continue
		}
		t.CurrentTime = t.TargetTime
		t.IsRunning = false
		completed = append(completed, *t)
	}
	if changed {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	for _, t := range completed {
		s.complete(ctx, t)
	}
}

func (s *Scheduler) complete(ctx context.Context, t domain.Timer) {
	s.metrics.TimerCompleted()
	s.logger.InfoContext(ctx, "timer finished", "id", t.ID, "title", t.Title, "repeat", t.RepeatSound)
	s.sound.Play(t.Sound, t.RepeatSound)

	options := domain.NotificationOptions{Shape: domain.ShapeSingle, ConfirmLabel: "OK"}
	if t.RepeatSound {
		options = domain.NotificationOptions{Shape: domain.ShapeDual, ConfirmLabel: "Stop Sound", CancelLabel: "Continue"}
	}
	title, message := s.renderer.Timer(t)
	sound := t.Sound
	s.notifier.Present(domain.Notification{
		Kind:     domain.NotificationTimer,
		SourceID: t.ID,
		Title:    title,
		Message:  message,
		Options:  options,
	}, func(domain.Ack) {
		s.sound.Stop(sound)
	})
}

// Active returns display-active timer.
func (s *Scheduler) Active() (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasActive {
		return domain.Timer{}, false
	}
	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return domain.Timer{}, false
	}
	return s.timers[idx], true
}

// List returns timers in creation order.
func (s *Scheduler) List() []domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Timer, len(s.timers))
	copy(out, s.timers)
	return out
}

// Get returns one timer by ID.
func (s *Scheduler) Get(id int64) (domain.Timer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return domain.Timer{}, false
	}
	return s.timers[idx], true
}

func (s *Scheduler) validate(settings domain.TimerSettings) (domain.SoundID, error) {
	if settings.Hours < 0 || settings.Minutes < 0 || settings.Seconds < 0 {
		s.warnInvalid()
		return "", apperr.Validation("duration must be greater than 0")
	}
	if !settings.InRange() {
		return "", apperr.Validation(fmt.Sprintf("duration must not exceed %s", domain.FormatClock(domain.MaxTimerSeconds)))
	}
	if settings.TotalSeconds() <= 0 {
		s.warnInvalid()
		return "", apperr.Validation("duration must be greater than 0")
	}
	soundID, err := domain.ParseSoundID(string(settings.Sound))
	if err != nil {
		return "", apperr.Mark(apperr.KindValidation, err)
	}
	return soundID, nil
}

func (s *Scheduler) warnInvalid() {
	s.notifier.Present(domain.Notification{
		Kind:    domain.NotificationWarning,
		Title:   invalidTitle,
		Message: invalidMessage,
		Options: domain.NotificationOptions{Shape: domain.ShapeSingle, ConfirmLabel: "OK"},
	}, nil)
}

func (s *Scheduler) indexLocked(id int64) int {
	for i, t := range s.timers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Scheduler) idleIndexLocked(id int64) (int, error) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return -1, ErrNotFound
	}
	if s.timers[idx].IsRunning {
		return -1, ErrTimerRunning
	}
	return idx, nil
}

func (s *Scheduler) setActiveLocked(id int64) {
	s.activeID = id
	s.hasActive = true
}

func (s *Scheduler) nextIDLocked() int64 {
	id := s.clock.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Scheduler) persistLocked(ctx context.Context) {
	if err := store.SaveCollection(ctx, s.store, store.KeyTimers, s.timers); err != nil {
		s.metrics.PersistenceFailed(store.KeyTimers)
		s.logger.Warn("timer save failed", "error", err)
	}
}
