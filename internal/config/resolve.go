package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"stretchbot/internal/engine"
	"stretchbot/internal/notifier"
	"stretchbot/internal/rpc"
	"stretchbot/internal/storage"
	logx "stretchbot/pkg/logx"
)

func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// Validate checks every section. It returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	if lvl := strings.TrimSpace(c.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", lvl))
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path: required when file logging is enabled"))
	}
	if _, err := c.EngineConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StorageConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.NotifierConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" {
			errs = append(errs, errors.New("telegram.token: required when telegram is enabled"))
		}
		if c.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("telegram.chat_id: required when telegram is enabled"))
		}
	}
	if c.Telegram.RatePerSec < 0 {
		errs = append(errs, errors.New("telegram.rate_per_sec: must be >= 0"))
	}
	if c.RPC.Enabled {
		if _, err := c.RPCConfig(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func (c *Config) EngineConfig() (engine.Config, error) {
	tick, err := parseDuration("engine.tick_interval", c.Engine.TickInterval, time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	if tick > time.Second {
		return engine.Config{}, fmt.Errorf("engine.tick_interval: must be <= 1s")
	}
	tz := strings.TrimSpace(c.Engine.Timezone)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return engine.Config{}, fmt.Errorf("engine.timezone: %w", err)
		}
	}
	return engine.Config{TickInterval: tick, Timezone: tz}, nil
}

func (c *Config) StorageConfig() (storage.Config, error) {
	bt, err := parseDuration("storage.busy_timeout", c.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch driver {
	case "", "none", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return storage.Config{}, fmt.Errorf("storage.path: required for driver %q", driver)
		}
	default:
		return storage.Config{}, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(c.Storage.Path), BusyTimeout: bt}, nil
}

func (c *Config) NotifierConfig() (notifier.Config, error) {
	send, err := parseDuration("notifier.send_timeout", c.Notifier.SendTimeout, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	ticks, err := parseDuration("notifier.log_ticks_every", c.Notifier.LogTicksEvery, 0)
	if err != nil {
		return notifier.Config{}, err
	}
	if c.Notifier.QueueSize < 0 {
		return notifier.Config{}, errors.New("notifier.queue_size: must be >= 0")
	}
	return notifier.Config{
		Enabled:       c.Notifier.Enabled,
		QueueSize:     c.Notifier.QueueSize,
		SendTimeout:   send,
		LogTicksEvery: ticks,
	}, nil
}

func (c *Config) TelegramConfig() notifier.TelegramConfig {
	return notifier.TelegramConfig{
		Token:      strings.TrimSpace(c.Telegram.Token),
		ChatID:     c.Telegram.ChatID,
		RatePerSec: c.Telegram.RatePerSec,
	}
}

func (c *Config) RPCConfig() (rpc.Config, error) {
	addr := strings.TrimSpace(c.RPC.Addr)
	if addr == "" {
		addr = DefaultRPCAddr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return rpc.Config{}, fmt.Errorf("rpc.addr: %w", err)
	}
	token := strings.TrimSpace(c.RPC.Token)
	if token == "" && !isLoopback(host) {
		return rpc.Config{}, fmt.Errorf("rpc.token: required when rpc.addr %q is not loopback", addr)
	}
	return rpc.Config{Addr: addr, Token: token}, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *Config) AppName() string {
	if n := strings.TrimSpace(c.Autostart.AppName); n != "" {
		return n
	}
	return DefaultAppName
}
