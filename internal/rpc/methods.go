package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"stretchbot/internal/domain"
	"stretchbot/internal/engine"
)

const (
	codeInvalidParams = jrpc2.Code(-32602)
	codeUnavailable   = jrpc2.Code(-32003)
)

type methods struct {
	eng Engine
}

func newMethods(eng Engine) handler.Map {
	m := &methods{eng: eng}
	return handler.Map{
		"settings.get":  handler.New(m.settingsGet),
		"settings.save": handler.New(m.settingsSave),

		"reminder.toggle":   handler.New(m.reminderToggle),
		"reminder.complete": handler.New(m.reminderComplete),
		"reminder.state":    handler.New(m.reminderState),

		"alarms.list":   handler.New(m.alarmsList),
		"alarms.save":   handler.New(m.alarmsSave),
		"alarms.delete": handler.New(m.alarmsDelete),
		"alarms.toggle": handler.New(m.alarmsToggle),

		"window.position.get":   handler.New(m.windowGet),
		"window.position.save":  handler.New(m.windowSave),
		"window.position.reset": handler.New(m.windowReset),
	}
}

// rpcError maps engine errors onto JSON-RPC codes.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return &jrpc2.Error{Code: codeInvalidParams, Message: ve.Error()}
	}
	if errors.Is(err, engine.ErrNotInitialized) {
		return &jrpc2.Error{Code: codeUnavailable, Message: err.Error()}
	}
	return err
}

func (m *methods) settingsGet(_ context.Context) (domain.Settings, error) {
	return m.eng.Settings(), nil
}

func (m *methods) settingsSave(ctx context.Context, p domain.Settings) (domain.Settings, error) {
	s, err := m.eng.SaveSettings(ctx, p)
	return s, rpcError(err)
}

func (m *methods) reminderToggle(_ context.Context) (engine.ReminderState, error) {
	st, err := m.eng.ToggleReminder()
	return st, rpcError(err)
}

func (m *methods) reminderComplete(_ context.Context) (engine.ReminderState, error) {
	st, err := m.eng.CompleteReminder()
	return st, rpcError(err)
}

func (m *methods) reminderState(_ context.Context) (engine.ReminderState, error) {
	st, err := m.eng.ReminderState()
	return st, rpcError(err)
}

func (m *methods) alarmsList(ctx context.Context) ([]engine.AlarmEntry, error) {
	list, err := m.eng.ListAlarms(ctx)
	if err != nil {
		return nil, rpcError(err)
	}
	if list == nil {
		list = []engine.AlarmEntry{}
	}
	return list, nil
}

func (m *methods) alarmsSave(ctx context.Context, p AlarmParams) (domain.Alarm, error) {
	a := domain.Alarm{
		ID:              strings.TrimSpace(p.ID),
		Title:           p.Title,
		Kind:            p.Kind,
		Time:            p.Time,
		RepeatDays:      p.RepeatDays,
		IntervalMinutes: p.IntervalMinutes,
	}

	// Start from the stored record on update, from settings on create.
	var prev *domain.Alarm
	if a.ID != "" {
		stored, ok, err := m.eng.GetAlarm(ctx, a.ID)
		if err != nil {
			return domain.Alarm{}, rpcError(err)
		}
		if ok {
			prev = &stored
		}
	}
	defaults := m.eng.Settings()
	a.Enabled = pick(p.Enabled, prev, func(x domain.Alarm) bool { return x.Enabled }, true)
	a.WaitSeconds = pick(p.WaitSeconds, prev, func(x domain.Alarm) int { return x.WaitSeconds }, defaults.WaitSeconds)
	a.SoundEnabled = pick(p.SoundEnabled, prev, func(x domain.Alarm) bool { return x.SoundEnabled }, defaults.SoundEnabled)

	out, err := m.eng.SaveAlarm(ctx, a)
	return out, rpcError(err)
}

func pick[T any](given *T, prev *domain.Alarm, field func(domain.Alarm) T, def T) T {
	switch {
	case given != nil:
		return *given
	case prev != nil:
		return field(*prev)
	default:
		return def
	}
}

func (m *methods) alarmsDelete(ctx context.Context, p IDParams) (AlarmResult, error) {
	ok, err := m.eng.DeleteAlarm(ctx, p.ID)
	if err != nil {
		return AlarmResult{}, rpcError(err)
	}
	return AlarmResult{Found: ok}, nil
}

func (m *methods) alarmsToggle(ctx context.Context, p IDParams) (AlarmResult, error) {
	a, ok, err := m.eng.ToggleAlarm(ctx, p.ID)
	if err != nil {
		return AlarmResult{}, rpcError(err)
	}
	if !ok {
		return AlarmResult{}, nil
	}
	return AlarmResult{Found: true, Alarm: &a}, nil
}

func (m *methods) windowGet(ctx context.Context) (WindowResult, error) {
	p, err := m.eng.WindowPosition(ctx)
	if err != nil {
		return WindowResult{}, rpcError(err)
	}
	return WindowResult{Position: p}, nil
}

func (m *methods) windowSave(ctx context.Context, p domain.WindowPosition) (EmptyResult, error) {
	return EmptyResult{}, rpcError(m.eng.SaveWindowPosition(ctx, p))
}

func (m *methods) windowReset(ctx context.Context) (EmptyResult, error) {
	return EmptyResult{}, rpcError(m.eng.ResetWindowPosition(ctx))
}
