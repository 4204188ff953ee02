package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"stretchbot/internal/alarms"
	"stretchbot/internal/domain"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/reminder"
	"stretchbot/internal/storage"
	logx "stretchbot/pkg/logx"
)

var ErrNotInitialized = errors.New("engine not initialized")

// Engine is the single logical event loop. Every command and every
// scheduled callback runs under mu, so the reminder timer, the alarm
// scanner and the interval deadlines never interleave with a mutation.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	log   logx.Logger
	store storage.Store
	bus   eventbus.Bus
	now   func() time.Time

	autostart func(enabled bool) error
	alarmOpts []alarms.Option

	settings domain.Settings
	timer    *reminder.Timer
	alarms   *alarms.Coordinator

	// lastSecond is when the reminder countdown last advanced.
	lastSecond time.Time
	ready      bool
}

func New(cfg Config, store storage.Store, bus eventbus.Bus, log logx.Logger, opts ...Option) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if store == nil {
		store = storage.NewMemory()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	e := &Engine{
		cfg:   cfg,
		log:   log,
		store: store,
		bus:   bus,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Init loads settings, arms the alarm schedule and starts the reminder
// countdown. A settings load failure falls back to defaults.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings = e.loadSettingsLocked(ctx)
	e.timer = reminder.New(e.settings.IntervalMinutes)

	loc := e.loadLocationLocked()
	opts := append([]alarms.Option{alarms.WithLocation(loc)}, e.alarmOpts...)
	e.alarms = alarms.NewCoordinator(e.store, e.log.With(logx.String("comp", "alarms")), opts...)

	now := e.now()
	if err := e.alarms.Init(ctx, now); err != nil {
		return fmt.Errorf("init alarms: %w", err)
	}
	e.ready = true
	e.timer.Start(true)
	e.lastSecond = now
	e.publishTickLocked(now)
	e.log.Info("engine initialised",
		logx.Int("interval_minutes", e.settings.IntervalMinutes),
		logx.String("tz", loc.String()),
	)
	return nil
}

func (e *Engine) loadSettingsLocked(ctx context.Context) domain.Settings {
	s, ok, err := e.store.LoadSettings(ctx)
	switch {
	case err != nil:
		e.log.Warn("load settings failed; using defaults", logx.Err(err))
		return domain.DefaultSettings()
	case !ok:
		return domain.DefaultSettings()
	}
	if err := s.Validate(); err != nil {
		e.log.Warn("stored settings invalid; using defaults", logx.Err(err))
		return domain.DefaultSettings()
	}
	return s
}

func (e *Engine) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(e.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Apply swaps the loop config. A timezone change takes effect on the next tick.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	oldTZ := strings.TrimSpace(e.cfg.Timezone)
	e.cfg = cfg
	if e.alarms != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		loc := e.loadLocationLocked()
		e.alarms.SetLocation(loc)
		e.log.Info("timezone changed", logx.String("tz", loc.String()))
	}
}

func (e *Engine) tickInterval() time.Duration {
	e.mu.Lock()
	d := e.cfg.TickInterval
	e.mu.Unlock()
	if d <= 0 || d > time.Second {
		return time.Second
	}
	return d
}

// Run drives the engine until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if !ready {
		return ErrNotInitialized
	}

	interval := e.tickInterval()
	t := time.NewTicker(interval)
	defer t.Stop()
	e.log.Debug("engine loop started", logx.Duration("tick", interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			e.step(ctx, e.now())
			if d := e.tickInterval(); d != interval {
				interval = d
				t.Reset(interval)
			}
		}
	}
}

// step runs one loop iteration at now.
func (e *Engine) step(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return
	}

	// The countdown advances at most one second per step; time lost to a
	// stalled loop or a suspend is not caught up.
	if now.Sub(e.lastSecond) >= time.Second {
		if now.Sub(e.lastSecond) >= 2*time.Second {
			e.lastSecond = now
		} else {
			e.lastSecond = e.lastSecond.Add(time.Second)
		}
		snap, outcome := e.timer.Tick()
		switch outcome {
		case reminder.OutcomeTicked:
			e.publishLocked(eventbus.TopicReminderTick, now, snap)
		case reminder.OutcomeFired:
			e.publishLocked(eventbus.TopicReminderTick, now, snap)
			e.publishLocked(eventbus.TopicReminderFired, now, ReminderFired{
				WaitSeconds:  e.settings.WaitSeconds,
				SoundEnabled: e.settings.SoundEnabled,
			})
			e.log.Info("stretch reminder fired", logx.Int("wait_seconds", e.settings.WaitSeconds))
		}
	}

	fires, changed := e.alarms.Tick(ctx, now)
	for _, f := range fires {
		e.publishLocked(eventbus.TopicAlarmFired, now, f)
		e.log.Info("alarm fired",
			logx.String("alarm_id", f.AlarmID),
			logx.String("title", f.Title),
			logx.String("kind", string(f.Kind)),
		)
	}
	if changed {
		e.publishAlarmsLocked(ctx, now)
	}
}

// Shutdown stops the countdown and cancels every alarm deadline.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return
	}
	e.ready = false
	e.timer.Stop()
	e.alarms.Shutdown()
	e.log.Info("engine stopped")
}

func (e *Engine) publishLocked(topic string, now time.Time, data any) {
	e.bus.Publish(eventbus.Event{Type: topic, Time: now, Data: data})
}

func (e *Engine) publishTickLocked(now time.Time) {
	e.publishLocked(eventbus.TopicReminderTick, now, e.timer.Snapshot())
}

func (e *Engine) publishAlarmsLocked(ctx context.Context, now time.Time) {
	list, err := e.alarms.List(ctx, now)
	if err != nil {
		e.log.Warn("list alarms for change event failed", logx.Err(err))
		return
	}
	e.publishLocked(eventbus.TopicAlarmsChanged, now, list)
}
