package alarms

import (
	"testing"
	"time"

	"stretchbot/internal/domain"
)

func TestNextFireAt(t *testing.T) {
	t.Parallel()
	// Monday 2024-03-04 10:00 UTC.
	now := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	today := domain.DateOf(now)

	laterToday := timeAlarm("a", 18, 0)
	earlierToday := timeAlarm("b", 9, 0)
	weekly := timeAlarm("c", 10, 0, time.Wednesday)
	doneToday := timeAlarm("d", 18, 0)
	doneToday.LastTriggered = &today
	disabled := timeAlarm("e", 18, 0)
	disabled.Enabled = false

	tests := []struct {
		name  string
		alarm domain.Alarm
		want  time.Time
		ok    bool
	}{
		{name: "later today", alarm: laterToday, want: time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC), ok: true},
		{name: "rolls to tomorrow", alarm: earlierToday, want: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), ok: true},
		{name: "weekday set", alarm: weekly, want: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC), ok: true},
		{name: "already triggered today", alarm: doneToday, want: time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC), ok: true},
		{name: "disabled", alarm: disabled, ok: false},
		{name: "interval", alarm: domain.Alarm{Kind: domain.KindInterval, Enabled: true, IntervalMinutes: 5}, ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NextFireAt(tt.alarm, now, time.UTC)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("NextFireAt = %v, want %v", got, tt.want)
			}
		})
	}
}
