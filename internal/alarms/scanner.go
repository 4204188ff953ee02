package alarms

import (
	"time"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"
)

// Scanner detects calendar-minute boundaries for time-of-day alarms.
//
// It is fed a sample every engine tick and asks for an evaluation only when
// the minute (in its location) differs from the previous sample. Minutes
// skipped by a suspend or a stalled loop are not replayed.
type Scanner struct {
	log  logx.Logger
	loc  *time.Location
	last time.Time
	seen bool
}

func NewScanner(loc *time.Location, log logx.Logger) *Scanner {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{loc: loc, log: log}
}

func (s *Scanner) Location() *time.Location { return s.loc }

// SetLocation switches time zone. The next sample always evaluates.
func (s *Scanner) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	s.loc = loc
	s.Reset()
}

func (s *Scanner) Reset() {
	s.seen = false
	s.last = time.Time{}
}

func (s *Scanner) minuteOf(now time.Time) time.Time {
	t := now.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, s.loc)
}

// Observe records a sample and reports whether its minute must be evaluated.
func (s *Scanner) Observe(now time.Time) bool {
	m := s.minuteOf(now)
	if s.seen && m.Equal(s.last) {
		return false
	}
	if s.seen {
		if gap := int(m.Sub(s.last) / time.Minute); gap > 1 {
			s.log.Warn("clock jumped forward; skipped minutes are not replayed",
				logx.Int("skipped_minutes", gap-1),
				logx.Time("from", s.last),
				logx.Time("to", m),
			)
		}
	}
	s.last = m
	s.seen = true
	return true
}

// Match returns the index of the first alarm due at now, or -1.
// Alarms are considered in slice order and at most one matches.
func (s *Scanner) Match(alarms []domain.Alarm, now time.Time) int {
	t := now.In(s.loc)
	clock := domain.ClockOf(t)
	today := domain.DateOf(t)
	for i, a := range alarms {
		if !a.Enabled || a.Kind != domain.KindTimeOfDay {
			continue
		}
		if a.Time == nil {
			s.log.Debug("skipping time alarm without time", logx.String("alarm_id", a.ID))
			continue
		}
		if *a.Time != clock {
			continue
		}
		if len(a.RepeatDays) > 0 && !a.RepeatsOn(t.Weekday()) {
			continue
		}
		if a.TriggeredOn(today) {
			continue
		}
		return i
	}
	return -1
}

// Today is the calendar date of now in the scanner's location.
func (s *Scanner) Today(now time.Time) domain.Date { return domain.DateOf(now.In(s.loc)) }
