package rpc

import (
	"context"
	"time"

	"stretchbot/internal/domain"
	"stretchbot/internal/engine"
)

// Config configures the RPC listener.
type Config struct {
	Addr  string // host:port; loopback unless a token is set
	Token string // bearer token; empty disables auth
}

// Engine is the command surface served over JSON-RPC.
type Engine interface {
	Settings() domain.Settings
	SaveSettings(ctx context.Context, s domain.Settings) (domain.Settings, error)

	ToggleReminder() (engine.ReminderState, error)
	CompleteReminder() (engine.ReminderState, error)
	ReminderState() (engine.ReminderState, error)

	ListAlarms(ctx context.Context) ([]engine.AlarmEntry, error)
	GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error)
	SaveAlarm(ctx context.Context, a domain.Alarm) (domain.Alarm, error)
	DeleteAlarm(ctx context.Context, id string) (bool, error)
	ToggleAlarm(ctx context.Context, id string) (domain.Alarm, bool, error)

	WindowPosition(ctx context.Context) (*domain.WindowPosition, error)
	SaveWindowPosition(ctx context.Context, p domain.WindowPosition) error
	ResetWindowPosition(ctx context.Context) error
}

// AlarmParams is the input of alarms.save. Nil pointer fields keep the
// stored value on update and take a default on create.
type AlarmParams struct {
	ID              string           `json:"id,omitempty"`
	Title           string           `json:"title"`
	Kind            domain.AlarmKind `json:"kind"`
	Enabled         *bool            `json:"enabled,omitempty"`
	Time            *domain.Clock    `json:"time,omitempty"`
	RepeatDays      []time.Weekday   `json:"repeat_days,omitempty"`
	IntervalMinutes int              `json:"interval_minutes,omitempty"`
	WaitSeconds     *int             `json:"wait_seconds,omitempty"`
	SoundEnabled    *bool            `json:"sound_enabled,omitempty"`
}

// IDParams is the input of alarms.delete and alarms.toggle.
type IDParams struct {
	ID string `json:"id"`
}

// AlarmResult reports a lookup-based mutation. Found is false for an
// unknown id, which is not an error.
type AlarmResult struct {
	Found bool          `json:"found"`
	Alarm *domain.Alarm `json:"alarm,omitempty"`
}

// WindowResult wraps the optional saved position.
type WindowResult struct {
	Position *domain.WindowPosition `json:"position"`
}

type EmptyResult struct{}
