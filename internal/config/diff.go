package config

import (
	"strings"

	logx "stretchbot/pkg/logx"
)

// Change describes what a reload touched. Fields never carry secrets.
type Change struct {
	Sections []string
	Fields   []logx.Field
}

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// Diff summarises the sections that differ between old and next.
func Diff(old, next *Config) Change {
	if old == nil {
		old = &Config{}
	}
	if next == nil {
		next = &Config{}
	}
	var ch Change
	add := func(section string, fields ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Fields = append(ch.Fields, fields...)
	}

	if old.Logging != next.Logging {
		add("logging",
			logx.String("logging.level", next.Logging.Level),
			logx.Bool("logging.console", next.Logging.Console),
			logx.Bool("logging.file_enabled", next.Logging.File.Enabled),
		)
	}
	if !trimEq(old.Engine.TickInterval, next.Engine.TickInterval) ||
		!trimEq(old.Engine.Timezone, next.Engine.Timezone) {
		add("engine",
			logx.String("engine.tick_interval", strings.TrimSpace(next.Engine.TickInterval)),
			logx.String("engine.timezone", strings.TrimSpace(next.Engine.Timezone)),
		)
	}
	if old.Storage != next.Storage {
		add("storage",
			logx.String("storage.driver", next.Storage.Driver),
			logx.String("storage.path", next.Storage.Path),
		)
	}
	if old.Notifier != next.Notifier {
		add("notifier",
			logx.Bool("notifier.enabled", next.Notifier.Enabled),
			logx.Int("notifier.queue_size", next.Notifier.QueueSize),
		)
	}
	if old.Telegram != next.Telegram {
		add("telegram",
			logx.Bool("telegram.enabled", next.Telegram.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(next.Telegram.Token) != ""),
			logx.Bool("telegram.chat_set", next.Telegram.ChatID != 0),
		)
	}
	if old.RPC != next.RPC {
		add("rpc",
			logx.Bool("rpc.enabled", next.RPC.Enabled),
			logx.String("rpc.addr", strings.TrimSpace(next.RPC.Addr)),
			logx.Bool("rpc.token_set", strings.TrimSpace(next.RPC.Token) != ""),
		)
	}
	if old.Autostart != next.Autostart {
		add("autostart",
			logx.Bool("autostart.enabled", next.Autostart.Enabled),
			logx.String("autostart.app_name", next.Autostart.AppName),
		)
	}
	return ch
}

func trimEq(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }
