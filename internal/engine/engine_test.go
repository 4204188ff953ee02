package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"stretchbot/internal/domain"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/storage"
	logx "stretchbot/pkg/logx"
)

// Monday 2024-03-04 08:59:00 UTC.
var start = time.Date(2024, time.March, 4, 8, 59, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type harness struct {
	e      *Engine
	clock  *fakeClock
	store  storage.Store
	events <-chan eventbus.Event
}

func newHarness(t *testing.T, store storage.Store, opts ...Option) *harness {
	t.Helper()
	if store == nil {
		store = storage.NewMemory()
	}
	clock := &fakeClock{now: start}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4096)
	t.Cleanup(unsub)
	n := 0
	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("alarm-%d", n) }),
	}, opts...)
	e := New(Config{Timezone: "UTC"}, store, bus, logx.Nop(), opts...)
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(e.Shutdown)
	return &harness{e: e, clock: clock, store: store, events: events}
}

// advance moves the clock forward one second at a time, stepping the loop.
func (h *harness) advance(seconds int) {
	for i := 0; i < seconds; i++ {
		h.e.step(context.Background(), h.clock.Advance(time.Second))
	}
}

func (h *harness) drain() []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case ev := <-h.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countTopic(events []eventbus.Event, topic string) int {
	n := 0
	for _, ev := range events {
		if ev.Type == topic {
			n++
		}
	}
	return n
}

func TestInitStartsReminderWithDefaults(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	st, err := h.e.ReminderState()
	if err != nil {
		t.Fatalf("ReminderState: %v", err)
	}
	if !st.IsRunning || st.RemainingSeconds != 1800 || st.IntervalMinutes != 30 {
		t.Fatalf("state = %+v", st)
	}
	if got := h.e.Settings(); got != domain.DefaultSettings() {
		t.Fatalf("settings = %+v", got)
	}
	if n := countTopic(h.drain(), eventbus.TopicReminderTick); n != 1 {
		t.Fatalf("initial tick events = %d", n)
	}
}

func TestInitUsesStoredSettings(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	s := domain.DefaultSettings()
	s.IntervalMinutes = 45
	if err := store.SaveSettings(context.Background(), s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	h := newHarness(t, store)
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 45*60 {
		t.Fatalf("remaining = %d", st.RemainingSeconds)
	}
}

func TestCommandsBeforeInit(t *testing.T) {
	t.Parallel()
	e := New(Config{}, nil, nil, logx.Nop())
	if _, err := e.ToggleReminder(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("ToggleReminder = %v", err)
	}
	if err := e.Run(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Run = %v", err)
	}
}

func TestReminderPauseResume(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.advance(600)
	st, _ := h.e.ToggleReminder()
	if st.IsRunning || !st.IsPaused || st.RemainingSeconds != 1200 {
		t.Fatalf("paused state = %+v", st)
	}
	h.advance(30)
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 1200 {
		t.Fatalf("paused countdown moved: %+v", st)
	}
	st, _ = h.e.ToggleReminder()
	if !st.IsRunning || st.RemainingSeconds != 1200 {
		t.Fatalf("resumed state = %+v", st)
	}
}

func TestReminderFiresAndCompletes(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	s := domain.DefaultSettings()
	s.IntervalMinutes = 1
	s.WaitSeconds = 12
	_ = store.SaveSettings(context.Background(), s)
	h := newHarness(t, store)
	h.drain()

	h.advance(60)
	events := h.drain()
	if n := countTopic(events, eventbus.TopicReminderFired); n != 1 {
		t.Fatalf("reminder.fired events = %d", n)
	}
	for _, ev := range events {
		if ev.Type == eventbus.TopicReminderFired {
			p := ev.Data.(ReminderFired)
			if p.WaitSeconds != 12 || !p.SoundEnabled {
				t.Fatalf("payload = %+v", p)
			}
		}
	}
	st, _ := h.e.ReminderState()
	if st.State != "firing" || st.IsRunning {
		t.Fatalf("state after fire = %+v", st)
	}

	h.advance(10)
	if n := countTopic(h.drain(), eventbus.TopicReminderTick); n != 0 {
		t.Fatalf("ticks while firing = %d", n)
	}
	st, _ = h.e.CompleteReminder()
	if !st.IsRunning || st.RemainingSeconds != 60 {
		t.Fatalf("state after complete = %+v", st)
	}
}

func TestStalledLoopDoesNotCatchUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.e.step(context.Background(), h.clock.Advance(10*time.Minute))
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 1799 {
		t.Fatalf("remaining = %d, want 1799", st.RemainingSeconds)
	}
}

func TestSubSecondTicksAdvanceOncePerSecond(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	for i := 0; i < 8; i++ {
		h.e.step(context.Background(), h.clock.Advance(250*time.Millisecond))
	}
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 1798 {
		t.Fatalf("remaining = %d, want 1798", st.RemainingSeconds)
	}
}

func TestSaveSettingsRestartsOnlyOnIntervalChange(t *testing.T) {
	t.Parallel()
	var autostart []bool
	h := newHarness(t, nil, WithAutostart(func(enabled bool) error {
		autostart = append(autostart, enabled)
		return nil
	}))
	ctx := context.Background()
	h.advance(100)

	s := h.e.Settings()
	s.SoundEnabled = false
	if _, err := h.e.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 1700 {
		t.Fatalf("unrelated change restarted timer: %+v", st)
	}

	s.IntervalMinutes = 10
	s.AutoStart = true
	if _, err := h.e.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if st, _ := h.e.ReminderState(); st.RemainingSeconds != 600 || !st.IsRunning {
		t.Fatalf("interval change did not restart: %+v", st)
	}
	if len(autostart) != 1 || !autostart[0] {
		t.Fatalf("autostart calls = %v", autostart)
	}
	stored, ok, _ := h.store.LoadSettings(ctx)
	if !ok || stored != s {
		t.Fatalf("stored = %+v, %v", stored, ok)
	}
	if n := countTopic(h.drain(), eventbus.TopicSettingsChanged); n != 2 {
		t.Fatalf("settings.changed events = %d", n)
	}
}

func TestSaveSettingsWhilePausedKeepsRemaining(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.advance(100)
	_, _ = h.e.ToggleReminder()
	s := h.e.Settings()
	s.IntervalMinutes = 5
	_, _ = h.e.SaveSettings(context.Background(), s)
	st, _ := h.e.ReminderState()
	if st.IsRunning || st.RemainingSeconds != 1700 || st.IntervalMinutes != 5 {
		t.Fatalf("state = %+v", st)
	}
}

func TestSaveSettingsRejectsInvalid(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	s := h.e.Settings()
	s.UISize = 9
	if _, err := h.e.SaveSettings(context.Background(), s); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("SaveSettings = %v", err)
	}
	if h.e.Settings().UISize != 2 {
		t.Fatal("invalid settings applied")
	}
}

func TestTimeAlarmFiresThroughLoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	c := domain.Clock{Hour: 9, Minute: 0}
	a, err := h.e.SaveAlarm(ctx, domain.Alarm{Title: "standup", Kind: domain.KindTimeOfDay, Enabled: true, Time: &c, WaitSeconds: 5})
	if err != nil {
		t.Fatalf("SaveAlarm: %v", err)
	}
	h.drain()

	h.advance(90)
	events := h.drain()
	if n := countTopic(events, eventbus.TopicAlarmFired); n != 1 {
		t.Fatalf("alarm.fired events = %d", n)
	}
	if n := countTopic(events, eventbus.TopicAlarmsChanged); n != 1 {
		t.Fatalf("alarms.changed events = %d", n)
	}
	got, _, _ := h.e.GetAlarm(ctx, a.ID)
	if got.Enabled {
		t.Fatal("one-shot alarm still enabled")
	}
}

func TestIntervalAlarmThroughLoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	a, _ := h.e.SaveAlarm(ctx, domain.Alarm{Title: "water", Kind: domain.KindInterval, Enabled: true, IntervalMinutes: 2, WaitSeconds: 5})
	h.drain()

	h.advance(360)
	if n := countTopic(h.drain(), eventbus.TopicAlarmFired); n != 3 {
		t.Fatalf("alarm.fired events = %d, want 3", n)
	}

	if _, ok, _ := h.e.ToggleAlarm(ctx, a.ID); !ok {
		t.Fatal("ToggleAlarm ok=false")
	}
	list, _ := h.e.ListAlarms(ctx)
	if len(list) != 1 || list[0].RemainingSeconds != nil {
		t.Fatalf("list = %+v", list)
	}
	h.advance(240)
	if n := countTopic(h.drain(), eventbus.TopicAlarmFired); n != 0 {
		t.Fatalf("disabled alarm fired %d times", n)
	}
}

func TestAlarmMutationsPublishChanges(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	a, _ := h.e.SaveAlarm(ctx, domain.Alarm{Title: "x", Kind: domain.KindInterval, Enabled: true, IntervalMinutes: 5, WaitSeconds: 5})
	_, _, _ = h.e.ToggleAlarm(ctx, a.ID)
	_, _ = h.e.DeleteAlarm(ctx, a.ID)
	_, _ = h.e.DeleteAlarm(ctx, a.ID)
	_, _, _ = h.e.ToggleAlarm(ctx, "missing")

	if n := countTopic(h.drain(), eventbus.TopicAlarmsChanged); n != 3 {
		t.Fatalf("alarms.changed events = %d, want 3", n)
	}
}

func TestWindowPosition(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	if p, err := h.e.WindowPosition(ctx); err != nil || p != nil {
		t.Fatalf("initial = %v, %v", p, err)
	}
	if err := h.e.SaveWindowPosition(ctx, domain.WindowPosition{X: 10, Y: -4}); err != nil {
		t.Fatalf("SaveWindowPosition: %v", err)
	}
	if p, _ := h.e.WindowPosition(ctx); p == nil || *p != (domain.WindowPosition{X: 10, Y: -4}) {
		t.Fatalf("saved = %v", p)
	}
	if err := h.e.ResetWindowPosition(ctx); err != nil {
		t.Fatalf("ResetWindowPosition: %v", err)
	}
	if p, _ := h.e.WindowPosition(ctx); p != nil {
		t.Fatalf("after reset = %v", p)
	}
}

func TestApplyTimezoneMovesAlarms(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	c := domain.Clock{Hour: 10, Minute: 0}
	_, _ = h.e.SaveAlarm(ctx, domain.Alarm{Title: "tz", Kind: domain.KindTimeOfDay, Enabled: true, Time: &c, RepeatDays: []time.Weekday{time.Monday}, WaitSeconds: 5})
	h.e.Apply(Config{Timezone: "Etc/GMT-1"})
	h.drain()

	// 09:00 UTC is 10:00 in Etc/GMT-1.
	h.advance(61)
	if n := countTopic(h.drain(), eventbus.TopicAlarmFired); n != 1 {
		t.Fatalf("alarm.fired events = %d", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	e := New(Config{TickInterval: 10 * time.Millisecond}, nil, nil, logx.Nop())
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	e.Shutdown()
}
