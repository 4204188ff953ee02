package alarms

import (
	"context"
	"time"

	"stretchbot/internal/domain"
)

// Repository is the subset of the store the coordinator needs.
type Repository interface {
	ListAlarms(ctx context.Context) ([]domain.Alarm, error)
	GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error)
	UpsertAlarm(ctx context.Context, a domain.Alarm) error
	DeleteAlarm(ctx context.Context, id string) (bool, error)
}

// Fire is emitted when an alarm goes off.
type Fire struct {
	AlarmID      string           `json:"alarm_id"`
	Title        string           `json:"title"`
	WaitSeconds  int              `json:"wait_seconds"`
	SoundEnabled bool             `json:"sound_enabled"`
	Kind         domain.AlarmKind `json:"kind"`
	At           time.Time        `json:"at"`
}

func fireOf(a domain.Alarm, at time.Time) Fire {
	return Fire{
		AlarmID:      a.ID,
		Title:        a.Title,
		WaitSeconds:  a.WaitSeconds,
		SoundEnabled: a.SoundEnabled,
		Kind:         a.Kind,
		At:           at,
	}
}

// Entry is an alarm annotated with live scheduling state.
type Entry struct {
	domain.Alarm

	// RemainingSeconds is set for interval alarms with a live deadline.
	RemainingSeconds *int `json:"remaining_seconds,omitempty"`
	// NextFireAt is set for enabled time-of-day alarms.
	NextFireAt *time.Time `json:"next_fire_at,omitempty"`
}
