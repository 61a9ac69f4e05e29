package alarm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"timekeeper/internal/apperr"
	"timekeeper/internal/clock"
	"timekeeper/internal/domain"
	"timekeeper/internal/metrics"
	"timekeeper/internal/notify"
	"timekeeper/internal/store"

	"github.com/teambition/rrule-go"
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
// Params: clock, store, sound player, notifier, renderer, logger, and optional metrics.
// Returns: constructor input for NewScheduler.
type Deps struct {
	Clock    clock.Clock
	Store    store.Store
	Sound    SoundPlayer
	Notifier Notifier
	Renderer *notify.Renderer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Scheduler owns the daily alarm set.
// Params: built by NewScheduler; all methods are safe for concurrent use.
// Returns: add/remove/tick/acknowledge operations over persisted alarms.
type Scheduler struct {
	clock    clock.Clock
	store    store.Store
	sound    SoundPlayer
	notifier Notifier
	renderer *notify.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	alarms  []domain.Alarm
	fired   map[int64]struct{}
	ringing map[int64]domain.SoundID
	lastID  int64
}

// NewScheduler creates scheduler with an empty alarm set; call Load to restore.
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
		logger:   logger.With("component", "alarm"),
		metrics:  deps.Metrics,
		alarms:   []domain.Alarm{},
		fired:    make(map[int64]struct{}),
		ringing:  make(map[int64]domain.SoundID),
	}
}

// Load restores alarms from store.
// Params: context for store access.
// Returns: nothing; unreadable data leaves an empty set and is logged.
func (s *Scheduler) Load(ctx context.Context) {
	alarms, err := store.DecodeCollection[domain.Alarm](ctx, s.store, store.KeyAlarms)
	if err != nil {
		s.metrics.PersistenceFailed(store.KeyAlarms)
		s.logger.Warn("alarm load failed; starting empty", "error", err)
		alarms = []domain.Alarm{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms = alarms
	s.fired = make(map[int64]struct{})
	for _, alarm := range alarms {
		if alarm.ID > s.lastID {
			s.lastID = alarm.ID
		}
	}
	s.logger.Info("alarms loaded", "count", len(alarms))
}

// Add validates input and appends a new alarm.
// Params: optional name, "HH:MM" time, and sound ID (empty selects default).
// Returns: created alarm or ValidationError.
func (s *Scheduler) Add(ctx context.Context, name, at string, sound string) (domain.Alarm, error) {
	tod, err := domain.ParseTimeOfDay(at)
	if err != nil {
		return domain.Alarm{}, apperr.Mark(apperr.KindValidation, err)
	}
	soundID, err := domain.ParseSoundID(sound)
	if err != nil {
		return domain.Alarm{}, apperr.Mark(apperr.KindValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	alarm := domain.Alarm{ID: s.nextIDLocked(), Name: name, Time: tod, Sound: soundID}
	s.alarms = append(s.alarms, alarm)
	s.persistLocked(ctx)
	s.logger.Info("alarm added", "id", alarm.ID, "time", alarm.Time.String(), "sound", alarm.Sound)
	return alarm, nil
}

// Remove deletes alarm from live set.
// Params: alarm ID.
// Returns: false for unknown IDs.
func (s *Scheduler) Remove(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.removeLocked(id) {
		return false
	}
	s.persistLocked(ctx)
	s.logger.Info("alarm removed", "id", id)
	return true
}

// List returns alarms in insertion order.
func (s *Scheduler) List() []domain.Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Alarm, len(s.alarms))
	copy(out, s.alarms)
	return out
}

// Tick fires alarms matching the current minute exactly once.
// Params: context for logging.
// Returns: nothing; each fired alarm plays looped sound and enqueues a blocking notification.
func (s *Scheduler) Tick(ctx context.Context) {
	current := domain.TimeOfDayOf(s.clock.Now())
	s.metrics.Tick("alarm")

	s.mu.Lock()
	var due []domain.Alarm
	for _, alarm := range s.alarms {
		if alarm.Time != current {
			continue
		}
		if _, done := s.fired[alarm.ID]; done {
			continue
		}
		s.fired[alarm.ID] = struct{}{}
		s.ringing[alarm.ID] = alarm.Sound
		due = append(due, alarm)
	}
	s.mu.Unlock()

	for _, alarm := range due {
		s.fire(ctx, alarm)
	}
}

func (s *Scheduler) fire(ctx context.Context, alarm domain.Alarm) {
	s.metrics.AlarmFired()
	s.logger.InfoContext(ctx, "alarm fired", "id", alarm.ID, "name", alarm.DisplayName(), "time", alarm.Time.String())
	s.sound.Play(alarm.Sound, true)

	title, message := s.renderer.Alarm(alarm)
	id := alarm.ID
	s.notifier.Present(domain.Notification{
		Kind:     domain.NotificationAlarm,
		SourceID: id,
		Title:    title,
		Message:  message,
		Options: domain.NotificationOptions{
			Shape:        domain.ShapeSingle,
			ConfirmLabel: "Dismiss",
			Blocking:     true,
		},
	}, func(domain.Ack) {
		s.Acknowledge(context.Background(), id)
	})
}

// Acknowledge stops alarm sound and removes the alarm.
// Params: alarm ID; unknown IDs only stop sound.
// Returns: nothing; repeated calls are no-ops beyond stopping sound.
func (s *Scheduler) Acknowledge(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sound, ok := s.ringing[id]; ok {
		s.sound.Stop(sound)
		delete(s.ringing, id)
	} else {
		for _, alarm := range s.alarms {
			if alarm.ID == id {
				s.sound.Stop(alarm.Sound)
				break
			}
		}
	}

	delete(s.fired, id)
	if s.removeLocked(id) {
		s.persistLocked(ctx)
		s.logger.Info("alarm acknowledged", "id", id)
	}
}

// TimeRemaining reports time until next occurrence of tod strictly after now.
// Params: time of day.
// Returns: "HH:MM:SS"; an occurrence equal to now rolls to the next day.
func (s *Scheduler) TimeRemaining(tod domain.TimeOfDay) string {
	now := s.clock.Now()
	return domain.FormatRemaining(NextOccurrence(tod, now).Sub(now))
}

// NextOccurrence computes next daily occurrence of tod strictly after now.
func NextOccurrence(tod domain.TimeOfDay, now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	rule, err := rrule.NewRRule(rrule.ROption{Freq: rrule.DAILY, Dtstart: start})
	if err == nil {
		if next := rule.After(now, false); !next.IsZero() {
			return next
		}
	}
	if !start.After(now) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}

func (s *Scheduler) removeLocked(id int64) bool {
	for i, alarm := range s.alarms {
		if alarm.ID != id {
			continue
		}
		s.alarms = append(s.alarms[:i], s.alarms[i+1:]...)
		delete(s.fired, id)
		return true
	}
	return false
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
	if err := store.SaveCollection(ctx, s.store, store.KeyAlarms, s.alarms); err != nil {
		s.metrics.PersistenceFailed(store.KeyAlarms)
		s.logger.Warn("alarm save failed", "error", err)
	}
}
