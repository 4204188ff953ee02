package engine

import (
	"context"
	"fmt"

	"stretchbot/internal/domain"
	"stretchbot/internal/eventbus"
	logx "stretchbot/pkg/logx"
)

func (e *Engine) Settings() domain.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// SaveSettings validates and persists s. The reminder restarts only when
// the interval changed while it was running. A persistence failure is
// returned after the in-memory settings have been applied.
func (e *Engine) SaveSettings(ctx context.Context, s domain.Settings) (domain.Settings, error) {
	if err := s.Validate(); err != nil {
		return domain.Settings{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return domain.Settings{}, ErrNotInitialized
	}

	prev := e.settings
	e.settings = s
	now := e.now()

	if e.timer.SetInterval(s.IntervalMinutes) {
		e.lastSecond = now
		e.log.Info("reminder restarted with new interval", logx.Int("interval_minutes", s.IntervalMinutes))
	}
	if prev.AutoStart != s.AutoStart && e.autostart != nil {
		if err := e.autostart(s.AutoStart); err != nil {
			e.log.Warn("apply autostart failed", logx.Bool("enabled", s.AutoStart), logx.Err(err))
		}
	}

	e.publishLocked(eventbus.TopicSettingsChanged, now, SettingsChanged{Settings: s})
	e.publishTickLocked(now)

	if err := e.store.SaveSettings(ctx, s); err != nil {
		return s, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

// ToggleReminder pauses a running countdown or resumes it.
func (e *Engine) ToggleReminder() (ReminderState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ReminderState{}, ErrNotInitialized
	}
	e.timer.Toggle()
	now := e.now()
	e.lastSecond = now
	e.publishTickLocked(now)
	return e.timer.Snapshot(), nil
}

// CompleteReminder acknowledges a stretch break and starts a new cycle.
func (e *Engine) CompleteReminder() (ReminderState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ReminderState{}, ErrNotInitialized
	}
	e.timer.Acknowledge()
	now := e.now()
	e.lastSecond = now
	e.publishTickLocked(now)
	return e.timer.Snapshot(), nil
}

func (e *Engine) ReminderState() (ReminderState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ReminderState{}, ErrNotInitialized
	}
	return e.timer.Snapshot(), nil
}

func (e *Engine) ListAlarms(ctx context.Context) ([]AlarmEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil, ErrNotInitialized
	}
	return e.alarms.List(ctx, e.now())
}

// SaveAlarm updates the alarm with a.ID or creates it.
func (e *Engine) SaveAlarm(ctx context.Context, a domain.Alarm) (domain.Alarm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return domain.Alarm{}, ErrNotInitialized
	}
	now := e.now()
	out, err := e.alarms.Save(ctx, a, now)
	if err != nil {
		return domain.Alarm{}, err
	}
	e.log.Info("alarm saved", logx.String("alarm_id", out.ID), logx.String("kind", string(out.Kind)))
	e.publishAlarmsLocked(ctx, now)
	return out, nil
}

// GetAlarm returns a stored alarm by id.
func (e *Engine) GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetAlarm(ctx, id)
}

func (e *Engine) DeleteAlarm(ctx context.Context, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return false, ErrNotInitialized
	}
	ok, err := e.alarms.Delete(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	e.log.Info("alarm deleted", logx.String("alarm_id", id))
	e.publishAlarmsLocked(ctx, e.now())
	return true, nil
}

func (e *Engine) ToggleAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return domain.Alarm{}, false, ErrNotInitialized
	}
	now := e.now()
	a, ok, err := e.alarms.Toggle(ctx, id, now)
	if err != nil || !ok {
		return domain.Alarm{}, false, err
	}
	e.log.Info("alarm toggled", logx.String("alarm_id", id), logx.Bool("enabled", a.Enabled))
	e.publishAlarmsLocked(ctx, now)
	return a, true, nil
}

// WindowPosition returns the saved mini-window position, nil when unset.
func (e *Engine) WindowPosition(ctx context.Context) (*domain.WindowPosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.WindowPosition(ctx)
}

func (e *Engine) SaveWindowPosition(ctx context.Context, p domain.WindowPosition) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SaveWindowPosition(ctx, &p); err != nil {
		return fmt.Errorf("save window position: %w", err)
	}
	return nil
}

// ResetWindowPosition forgets the saved position; the UI re-centres.
func (e *Engine) ResetWindowPosition(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SaveWindowPosition(ctx, nil); err != nil {
		return fmt.Errorf("reset window position: %w", err)
	}
	return nil
}
