package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"timekeeper/internal/apperr"
	"timekeeper/internal/domain"
	"timekeeper/internal/store"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

type fakeSound struct {
	mu      sync.Mutex
	playing map[domain.SoundID]bool
	plays   int
	stops   int
}

func newFakeSound() *fakeSound {
	return &fakeSound{playing: make(map[domain.SoundID]bool)}
}

func (f *fakeSound) Play(id domain.SoundID, _ bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing[id] = true
	f.plays++
}

func (f *fakeSound) Stop(id domain.SoundID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing[id] = false
	f.stops++
}

type fakeNotifier struct {
	mu        sync.Mutex
	presented []domain.Notification
	callbacks []func(domain.Ack)
}

func (f *fakeNotifier) Present(n domain.Notification, onClose func(domain.Ack)) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presented = append(f.presented, n)
	f.callbacks = append(f.callbacks, onClose)
	return n.Title
}

type harness struct {
	clock    *manualClock
	store    *store.MemoryStore
	sound    *fakeSound
	notifier *fakeNotifier
	sched    *Scheduler
}

func newHarness(now time.Time) *harness {
	h := &harness{
		clock:    &manualClock{now: now},
		store:    store.NewMemoryStore(),
		sound:    newFakeSound(),
		notifier: &fakeNotifier{},
	}
	h.sched = NewScheduler(Deps{
		Clock:    h.clock,
		Store:    h.store,
		Sound:    h.sound,
		Notifier: h.notifier,
	})
	return h
}

func at(hour, minute, second int) time.Time {
	return time.Date(2024, 3, 10, hour, minute, second, 0, time.UTC)
}

func TestAlarmFiresOnceAndAcknowledgeRemoves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(7, 0, 0))
	alarm, err := h.sched.Add(ctx, "", "07:30", "bell")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	h.clock.Set(at(7, 29, 59))
	h.sched.Tick(ctx)
	if len(h.notifier.presented) != 0 {
		t.Fatalf("alarm fired too early")
	}

	for second := 0; second < 60; second++ {
		h.clock.Set(at(7, 30, second))
		h.sched.Tick(ctx)
	}
	if len(h.notifier.presented) != 1 {
		t.Fatalf("expected exactly one firing in the minute, got %d", len(h.notifier.presented))
	}
	n := h.notifier.presented[0]
	if n.Title != "⏰ Alarm!" || n.Message != "Alarm for 7:30 AM" {
		t.Fatalf("unexpected text %q / %q", n.Title, n.Message)
	}
	if !n.Options.Blocking || n.Options.ConfirmLabel != "Dismiss" || n.Options.Shape != domain.ShapeSingle {
		t.Fatalf("unexpected options %+v", n.Options)
	}
	if n.SourceID != alarm.ID || !h.sound.playing[domain.SoundBell] {
		t.Fatalf("expected bell playing for alarm %d", alarm.ID)
	}

	h.notifier.callbacks[0](domain.Ack{Choice: domain.ChoiceConfirm})
	if h.sound.playing[domain.SoundBell] {
		t.Fatalf("acknowledge must stop sound")
	}
	if len(h.sched.List()) != 0 {
		t.Fatalf("acknowledged alarm must be removed")
	}
	persisted, err := store.DecodeCollection[domain.Alarm](ctx, h.store, store.KeyAlarms)
	if err != nil {
		t.Fatalf("decode persisted: %v", err)
	}
	if len(persisted) != 0 {
		t.Fatalf("expected empty persisted alarms, got %+v", persisted)
	}

	stops := h.sound.stops
	h.sched.Acknowledge(ctx, alarm.ID)
	if len(h.sched.List()) != 0 || h.sound.stops != stops {
		t.Fatalf("second acknowledge must be a no-op")
	}
}

func TestSimultaneousAlarmsEachNotify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(6, 0, 0))
	if _, err := h.sched.Add(ctx, "Gym", "06:15", "rush"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.sched.Add(ctx, "Meds", "06:15", "digital"); err != nil {
		t.Fatalf("add: %v", err)
	}
	h.clock.Set(at(6, 15, 3))
	h.sched.Tick(ctx)
	if len(h.notifier.presented) != 2 {
		t.Fatalf("expected two notifications, got %d", len(h.notifier.presented))
	}
	if h.notifier.presented[0].Title != "⏰ Gym!" || h.notifier.presented[1].Title != "⏰ Meds!" {
		t.Fatalf("unexpected titles: %q %q", h.notifier.presented[0].Title, h.notifier.presented[1].Title)
	}
}

func TestRemoveWhileFiringStillStopsSound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(8, 0, 0))
	alarm, _ := h.sched.Add(ctx, "", "08:00", "digital")
	h.sched.Tick(ctx)

	if !h.sched.Remove(ctx, alarm.ID) {
		t.Fatalf("expected remove to succeed")
	}
	if h.sched.Remove(ctx, alarm.ID) {
		t.Fatalf("unknown id must return false")
	}
	h.sched.Tick(ctx)
	if len(h.notifier.presented) != 1 {
		t.Fatalf("removed alarm must not fire again")
	}
	h.notifier.callbacks[0](domain.Ack{Choice: domain.ChoiceConfirm})
	if h.sound.playing[domain.SoundDigital] {
		t.Fatalf("acknowledging a removed alarm must stop its sound")
	}
}

func TestAddValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(8, 0, 0))
	if _, err := h.sched.Add(ctx, "", "8:00", ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.sched.Add(ctx, "", "08:00", "gong"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for sound, got %v", err)
	}
	if len(h.sched.List()) != 0 {
		t.Fatalf("rejected input must not mutate state")
	}
}

func TestIDsStrictlyIncreaseAndSurviveReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(9, 0, 0))
	first, _ := h.sched.Add(ctx, "a", "09:05", "")
	second, _ := h.sched.Add(ctx, "b", "09:06", "")
	if second.ID <= first.ID {
		t.Fatalf("ids must increase: %d then %d", first.ID, second.ID)
	}
	if first.Sound != domain.SoundBell {
		t.Fatalf("expected default sound, got %q", first.Sound)
	}

	reloaded := NewScheduler(Deps{Clock: h.clock, Store: h.store, Sound: h.sound, Notifier: h.notifier})
	reloaded.Load(ctx)
	got := reloaded.List()
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("unexpected reload: %+v", got)
	}
	third, _ := reloaded.Add(ctx, "c", "09:07", "")
	if third.ID <= second.ID {
		t.Fatalf("id after reload must exceed persisted ids")
	}
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(at(9, 0, 0))
	if err := h.store.Save(ctx, store.KeyAlarms, []byte("not-json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	h.sched.Load(ctx)
	if len(h.sched.List()) != 0 {
		t.Fatalf("expected empty set after corrupt load")
	}
}

func TestTimeRemaining(t *testing.T) {
	t.Parallel()

	cases := []struct {
		now  time.Time
		tod  domain.TimeOfDay
		want string
	}{
		{now: at(7, 0, 0), tod: domain.TimeOfDay{Hour: 7, Minute: 30}, want: "00:30:00"},
		{now: at(7, 30, 0), tod: domain.TimeOfDay{Hour: 7, Minute: 30}, want: "24:00:00"},
		{now: at(7, 30, 1), tod: domain.TimeOfDay{Hour: 7, Minute: 30}, want: "23:59:59"},
		{now: at(23, 59, 30), tod: domain.TimeOfDay{Hour: 0, Minute: 0}, want: "00:00:30"},
	}
	for _, tc := range cases {
		h := newHarness(tc.now)
		if got := h.sched.TimeRemaining(tc.tod); got != tc.want {
			t.Fatalf("now=%s tod=%s: got %q want %q", tc.now.Format(time.TimeOnly), tc.tod, got, tc.want)
		}
	}
}
