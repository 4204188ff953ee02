package storage

import (
	"context"
	"errors"
	"time"

	"stretchbot/internal/domain"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "" / "memory" / "none": in-memory only
//   - "file": snapshot + journal files next to Path
//   - "sqlite": SQLite database file at Path
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the engine and alarm coordinator.
//
// ListAlarms returns alarms in insertion order. UpsertAlarm keeps the
// position of an existing id and appends a new one.
type Store interface {
	LoadSettings(ctx context.Context) (s domain.Settings, ok bool, err error)
	SaveSettings(ctx context.Context, s domain.Settings) error

	WindowPosition(ctx context.Context) (*domain.WindowPosition, error)
	// SaveWindowPosition stores p; nil clears the saved position.
	SaveWindowPosition(ctx context.Context, p *domain.WindowPosition) error

	ListAlarms(ctx context.Context) ([]domain.Alarm, error)
	GetAlarm(ctx context.Context, id string) (a domain.Alarm, ok bool, err error)
	UpsertAlarm(ctx context.Context, a domain.Alarm) error
	DeleteAlarm(ctx context.Context, id string) (ok bool, err error)

	Close() error
}

// alarmSet is an insertion-ordered alarm collection shared by the
// memory-backed drivers.
type alarmSet struct {
	order []string
	byID  map[string]domain.Alarm
}

func newAlarmSet() *alarmSet { return &alarmSet{byID: map[string]domain.Alarm{}} }

func (s *alarmSet) list() []domain.Alarm {
	out := make([]domain.Alarm, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *alarmSet) get(id string) (domain.Alarm, bool) {
	a, ok := s.byID[id]
	if !ok {
		return domain.Alarm{}, false
	}
	return a.Clone(), true
}

func (s *alarmSet) upsert(a domain.Alarm) {
	if _, ok := s.byID[a.ID]; !ok {
		s.order = append(s.order, a.ID)
	}
	s.byID[a.ID] = a.Clone()
}

func (s *alarmSet) remove(id string) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
