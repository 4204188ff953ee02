package alarms

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"stretchbot/internal/domain"
)

// cronSpec renders a time-of-day alarm as a standard 5-field cron expression.
func cronSpec(a domain.Alarm) (string, error) {
	if a.Time == nil {
		return "", fmt.Errorf("alarm %s has no time", a.ID)
	}
	dow := "*"
	if len(a.RepeatDays) > 0 {
		parts := make([]string, 0, len(a.RepeatDays))
		for _, d := range a.RepeatDays {
			parts = append(parts, strconv.Itoa(int(d)))
		}
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d * * %s", a.Time.Minute, a.Time.Hour, dow), nil
}

// NextFireAt predicts when a time-of-day alarm will next go off after now,
// honouring same-day dedup. It is a display aid; the scanner stays the
// source of truth.
func NextFireAt(a domain.Alarm, now time.Time, loc *time.Location) (time.Time, bool) {
	if !a.Enabled || a.Kind != domain.KindTimeOfDay {
		return time.Time{}, false
	}
	spec, err := cronSpec(a)
	if err != nil {
		return time.Time{}, false
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	from := now.In(loc)
	today := domain.DateOf(from)
	next := sched.Next(from)
	if a.TriggeredOn(today) {
		for !next.IsZero() && domain.DateOf(next) == today {
			next = sched.Next(next)
		}
	}
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}
