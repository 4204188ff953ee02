package storage

import (
	"context"
	"sync"

	"stretchbot/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	closed   bool
	settings *domain.Settings
	window   *domain.WindowPosition
	alarms   *alarmSet
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return newMemStore()
}

func newMemStore() *memStore {
	return &memStore{alarms: newAlarmSet()}
}

func (s *memStore) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Settings{}, false, ErrClosed
	}
	if s.settings == nil {
		return domain.Settings{}, false, nil
	}
	return *s.settings, true, nil
}

func (s *memStore) SaveSettings(ctx context.Context, v domain.Settings) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.settings = &v
	return nil
}

func (s *memStore) WindowPosition(ctx context.Context) (*domain.WindowPosition, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.window == nil {
		return nil, nil
	}
	p := *s.window
	return &p, nil
}

func (s *memStore) SaveWindowPosition(ctx context.Context, p *domain.WindowPosition) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if p == nil {
		s.window = nil
		return nil
	}
	cp := *p
	s.window = &cp
	return nil
}

func (s *memStore) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.alarms.list(), nil
}

func (s *memStore) GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Alarm{}, false, ErrClosed
	}
	a, ok := s.alarms.get(id)
	return a, ok, nil
}

func (s *memStore) UpsertAlarm(ctx context.Context, a domain.Alarm) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.alarms.upsert(a)
	return nil
}

func (s *memStore) DeleteAlarm(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.alarms.remove(id), nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
