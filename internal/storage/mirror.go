package storage

import (
	"context"
	"sync/atomic"

	"stretchbot/internal/domain"
	logx "stretchbot/pkg/logx"
)

// Mirror serves every read from an in-memory copy and writes through to a
// backing store. Backend write failures are logged and swallowed: the
// in-memory copy stays authoritative for the rest of the process lifetime.
type Mirror struct {
	mem      *memStore
	primary  Store
	log      logx.Logger
	degraded atomic.Bool
}

// NewMirror loads the current state of primary into memory. If loading
// fails the mirror starts empty and is marked degraded.
func NewMirror(ctx context.Context, primary Store, log logx.Logger) *Mirror {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Mirror{mem: newMemStore(), primary: primary, log: log}
	if primary == nil {
		return m
	}
	if err := m.load(ctx); err != nil {
		log.Warn("storage load failed; continuing with defaults in memory", logx.Err(err))
		m.mem = newMemStore()
		m.degraded.Store(true)
	}
	return m
}

func (m *Mirror) load(ctx context.Context) error {
	s, ok, err := m.primary.LoadSettings(ctx)
	if err != nil {
		return err
	}
	if ok {
		_ = m.mem.SaveSettings(ctx, s)
	}
	p, err := m.primary.WindowPosition(ctx)
	if err != nil {
		return err
	}
	_ = m.mem.SaveWindowPosition(ctx, p)
	alarms, err := m.primary.ListAlarms(ctx)
	if err != nil {
		return err
	}
	for _, a := range alarms {
		if a.ID == "" {
			continue
		}
		_ = m.mem.UpsertAlarm(ctx, a)
	}
	return nil
}

// Degraded reports whether the backing store has failed at least once.
func (m *Mirror) Degraded() bool { return m.degraded.Load() }

func (m *Mirror) writeThrough(op string, fn func(Store) error) {
	if m.primary == nil {
		return
	}
	if err := fn(m.primary); err != nil {
		if !m.degraded.Swap(true) {
			m.log.Warn("storage write failed; running from memory", logx.String("op", op), logx.Err(err))
		} else {
			m.log.Debug("storage write failed", logx.String("op", op), logx.Err(err))
		}
	}
}

func (m *Mirror) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	return m.mem.LoadSettings(ctx)
}

func (m *Mirror) SaveSettings(ctx context.Context, s domain.Settings) error {
	if err := m.mem.SaveSettings(ctx, s); err != nil {
		return err
	}
	m.writeThrough("save_settings", func(st Store) error { return st.SaveSettings(ctx, s) })
	return nil
}

func (m *Mirror) WindowPosition(ctx context.Context) (*domain.WindowPosition, error) {
	return m.mem.WindowPosition(ctx)
}

func (m *Mirror) SaveWindowPosition(ctx context.Context, p *domain.WindowPosition) error {
	if err := m.mem.SaveWindowPosition(ctx, p); err != nil {
		return err
	}
	m.writeThrough("save_window_position", func(st Store) error { return st.SaveWindowPosition(ctx, p) })
	return nil
}

func (m *Mirror) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	return m.mem.ListAlarms(ctx)
}

func (m *Mirror) GetAlarm(ctx context.Context, id string) (domain.Alarm, bool, error) {
	return m.mem.GetAlarm(ctx, id)
}

func (m *Mirror) UpsertAlarm(ctx context.Context, a domain.Alarm) error {
	if err := m.mem.UpsertAlarm(ctx, a); err != nil {
		return err
	}
	m.writeThrough("upsert_alarm", func(st Store) error { return st.UpsertAlarm(ctx, a) })
	return nil
}

func (m *Mirror) DeleteAlarm(ctx context.Context, id string) (bool, error) {
	ok, err := m.mem.DeleteAlarm(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	m.writeThrough("delete_alarm", func(st Store) error {
		_, err := st.DeleteAlarm(ctx, id)
		return err
	})
	return true, nil
}

func (m *Mirror) Close() error {
	_ = m.mem.Close()
	if m.primary == nil {
		return nil
	}
	return m.primary.Close()
}
