package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

type AlarmKind string

const (
	KindTimeOfDay AlarmKind = "time_of_day"
	KindInterval  AlarmKind = "interval"
)

const (
	MaxTitleLen      = 20
	MinAlarmInterval = 1
	MaxAlarmInterval = 1440
)

// Alarm is a user-defined alarm. Exactly one of the TimeOfDay fields
// (Time, RepeatDays, LastTriggered) or the Interval field (IntervalMinutes)
// is populated, depending on Kind.
type Alarm struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Kind    AlarmKind `json:"kind"`
	Enabled bool      `json:"enabled"`

	Time          *Clock         `json:"time,omitempty"`
	RepeatDays    []time.Weekday `json:"repeat_days,omitempty"`
	LastTriggered *Date          `json:"last_triggered,omitempty"`

	IntervalMinutes int `json:"interval_minutes,omitempty"`

	WaitSeconds  int  `json:"wait_seconds"`
	SoundEnabled bool `json:"sound_enabled"`
}

// OneShot reports whether a time-of-day alarm disables itself after firing.
func (a Alarm) OneShot() bool { return a.Kind == KindTimeOfDay && len(a.RepeatDays) == 0 }

func (a Alarm) RepeatsOn(d time.Weekday) bool { return slices.Contains(a.RepeatDays, d) }

func (a Alarm) TriggeredOn(d Date) bool { return a.LastTriggered != nil && *a.LastTriggered == d }

// Clone returns a deep copy.
func (a Alarm) Clone() Alarm {
	out := a
	if a.Time != nil {
		t := *a.Time
		out.Time = &t
	}
	if a.LastTriggered != nil {
		d := *a.LastTriggered
		out.LastTriggered = &d
	}
	if a.RepeatDays != nil {
		out.RepeatDays = append([]time.Weekday(nil), a.RepeatDays...)
	}
	return out
}

// Normalize trims the title, sorts and dedups repeat days and clears the
// fields of the branch that does not match Kind.
func (a *Alarm) Normalize() {
	a.ID = strings.TrimSpace(a.ID)
	a.Title = strings.TrimSpace(a.Title)
	switch a.Kind {
	case KindTimeOfDay:
		a.IntervalMinutes = 0
		if len(a.RepeatDays) > 0 {
			days := append([]time.Weekday(nil), a.RepeatDays...)
			slices.Sort(days)
			a.RepeatDays = slices.Compact(days)
		} else {
			a.RepeatDays = nil
		}
	case KindInterval:
		a.Time = nil
		a.RepeatDays = nil
		a.LastTriggered = nil
	}
}

// Validate checks an alarm as submitted by a caller. It does not mutate.
func (a Alarm) Validate() error {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		return invalid("title", "must not be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return invalid("title", "must be at most 20 characters")
	}
	switch a.Kind {
	case KindTimeOfDay:
		if a.Time == nil {
			return invalid("time", "is required for time_of_day alarms")
		}
		if !a.Time.Valid() {
			return invalid("time", "must be a valid HH:MM")
		}
		for _, d := range a.RepeatDays {
			if d < time.Sunday || d > time.Saturday {
				return invalid("repeat_days", "must be weekdays 0-6")
			}
		}
	case KindInterval:
		if a.IntervalMinutes < MinAlarmInterval || a.IntervalMinutes > MaxAlarmInterval {
			return invalid("interval_minutes", "must be between 1 and 1440")
		}
	default:
		return invalid("kind", "must be time_of_day or interval")
	}
	if a.WaitSeconds < MinWaitSeconds || a.WaitSeconds > MaxWaitSeconds {
		return invalid("wait_seconds", "must be between 1 and 300")
	}
	return nil
}
