package engine

import (
	"time"

	"stretchbot/internal/alarms"
	"stretchbot/internal/domain"
	"stretchbot/internal/reminder"
)

// Config controls the engine loop.
type Config struct {
	TickInterval time.Duration // 0 means 1s; values above 1s are clamped
	Timezone     string        // IANA TZ for time-of-day alarms; "" means Local
}

// ReminderFired is the payload of reminder.fired.
type ReminderFired struct {
	WaitSeconds  int  `json:"wait_seconds"`
	SoundEnabled bool `json:"sound_enabled"`
}

// SettingsChanged is the payload of settings.changed.
type SettingsChanged struct {
	Settings domain.Settings `json:"settings"`
}

type (
	ReminderState = reminder.Snapshot
	AlarmEntry    = alarms.Entry
	AlarmFire     = alarms.Fire
)

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAutostart installs the hook that applies settings.auto_start.
func WithAutostart(fn func(enabled bool) error) Option {
	return func(e *Engine) { e.autostart = fn }
}

// WithIDGenerator overrides the alarm id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.alarmOpts = append(e.alarmOpts, alarms.WithIDGenerator(fn)) }
}
