package alarms

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"
)

func timeAlarm(id string, h, m int, days ...time.Weekday) domain.Alarm {
	c := domain.Clock{Hour: h, Minute: m}
	return domain.Alarm{
		ID:          id,
		Title:       "wake " + id,
		Kind:        domain.KindTimeOfDay,
		Enabled:     true,
		Time:        &c,
		RepeatDays:  days,
		WaitSeconds: 5,
	}
}

func TestScannerObserveIsEdgeTriggered(t *testing.T) {
	t.Parallel()
	s := NewScanner(time.UTC, logx.Nop())
	base := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

	if !s.Observe(base.Add(20 * time.Second)) {
		t.Fatal("first observation should evaluate")
	}
	if s.Observe(base.Add(59 * time.Second)) {
		t.Fatal("same minute evaluated twice")
	}
	if !s.Observe(base.Add(61 * time.Second)) {
		t.Fatal("new minute not evaluated")
	}
}

func TestScannerLogsSkippedMinutes(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	s := NewScanner(time.UTC, logx.NewWriter(&buf, "info"))
	base := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	s.Observe(base)
	if !s.Observe(base.Add(10 * time.Minute)) {
		t.Fatal("minute after gap not evaluated")
	}
	if !strings.Contains(buf.String(), `"skipped_minutes":9`) {
		t.Fatalf("gap not logged: %s", buf.String())
	}
}

func TestScannerMatch(t *testing.T) {
	t.Parallel()
	monday9 := time.Date(2024, time.March, 4, 9, 0, 30, 0, time.UTC)
	today := domain.DateOf(monday9)
	yesterday := domain.DateOf(monday9.AddDate(0, 0, -1))

	triggered := timeAlarm("triggered", 9, 0)
	triggered.LastTriggered = &today
	stale := timeAlarm("stale", 9, 0)
	stale.LastTriggered = &yesterday
	disabled := timeAlarm("disabled", 9, 0)
	disabled.Enabled = false
	malformed := timeAlarm("malformed", 9, 0)
	malformed.Time = nil
	interval := domain.Alarm{ID: "interval", Kind: domain.KindInterval, Enabled: true, IntervalMinutes: 1}

	tests := []struct {
		name   string
		alarms []domain.Alarm
		want   int
	}{
		{name: "time mismatch", alarms: []domain.Alarm{timeAlarm("a", 9, 1)}, want: -1},
		{name: "match one shot", alarms: []domain.Alarm{timeAlarm("a", 9, 0)}, want: 0},
		{name: "weekday excluded", alarms: []domain.Alarm{timeAlarm("a", 9, 0, time.Tuesday)}, want: -1},
		{name: "weekday included", alarms: []domain.Alarm{timeAlarm("a", 9, 0, time.Sunday, time.Monday)}, want: 0},
		{name: "already triggered today", alarms: []domain.Alarm{triggered}, want: -1},
		{name: "triggered yesterday", alarms: []domain.Alarm{stale}, want: 0},
		{name: "skips disabled malformed and interval", alarms: []domain.Alarm{disabled, malformed, interval, timeAlarm("b", 9, 0)}, want: 3},
		{name: "first of identical wins", alarms: []domain.Alarm{timeAlarm("x", 9, 0), timeAlarm("y", 9, 0)}, want: 0},
	}
	s := NewScanner(time.UTC, logx.Nop())
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Match(tt.alarms, monday9); got != tt.want {
				t.Fatalf("Match() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScannerUsesLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+9", 9*3600)
	s := NewScanner(loc, logx.Nop())
	// 00:30 UTC is 09:30 in UTC+9.
	now := time.Date(2024, time.March, 4, 0, 30, 0, 0, time.UTC)
	if got := s.Match([]domain.Alarm{timeAlarm("a", 9, 30)}, now); got != 0 {
		t.Fatalf("Match() = %d, want 0", got)
	}
}
