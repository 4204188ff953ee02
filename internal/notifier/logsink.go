package notifier

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"stretchbot/internal/alarms"
	"stretchbot/internal/engine"
	"stretchbot/internal/eventbus"
	"stretchbot/internal/reminder"
	logx "stretchbot/pkg/logx"
)

// LogSink writes fires at info level. Ticks are sampled so a running
// countdown does not flood the log.
type LogSink struct {
	log   logx.Logger
	ticks *rate.Sometimes
}

func NewLogSink(log logx.Logger, tickEvery time.Duration) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &LogSink{log: log}
	if tickEvery > 0 {
		s.ticks = &rate.Sometimes{First: 1, Interval: tickEvery}
	}
	return s
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Handle(_ context.Context, ev eventbus.Event) error {
	switch d := ev.Data.(type) {
	case reminder.Snapshot:
		if s.ticks == nil {
			return nil
		}
		s.ticks.Do(func() {
			s.log.Debug("reminder tick",
				logx.Int("remaining_seconds", d.RemainingSeconds),
				logx.String("state", string(d.State)),
			)
		})
	case engine.ReminderFired:
		s.log.Info("time to stretch", logx.Int("wait_seconds", d.WaitSeconds), logx.Bool("sound", d.SoundEnabled))
	case alarms.Fire:
		s.log.Info("alarm", logx.String("alarm_id", d.AlarmID), logx.String("title", d.Title), logx.Int("wait_seconds", d.WaitSeconds))
	case []alarms.Entry:
		s.log.Debug("alarms changed", logx.Int("count", len(d)))
	case engine.SettingsChanged:
		s.log.Debug("settings changed", logx.Int("interval_minutes", d.Settings.IntervalMinutes))
	default:
		s.log.Trace("event", logx.String("type", ev.Type))
	}
	return nil
}
