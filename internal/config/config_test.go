package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "stretchbot/pkg/logx"
)

const sampleYAML = `
logging:
  level: debug
  console: true
engine:
  tick_interval: 500ms
  timezone: Asia/Seoul
storage:
  driver: sqlite
  path: ./data.db
  busy_timeout: 2s
notifier:
  enabled: true
  queue_size: 32
telegram:
  enabled: true
  token: "123:abc"
  chat_id: 42
rpc:
  enabled: true
  addr: 127.0.0.1:9000
autostart:
  enabled: false
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "stretchbot.yaml", sampleYAML)
	m := NewManager(p, logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
	ec, err := cfg.EngineConfig()
	if err != nil || ec.TickInterval != 500*time.Millisecond || ec.Timezone != "Asia/Seoul" {
		t.Fatalf("EngineConfig = %+v, %v", ec, err)
	}
	sc, err := cfg.StorageConfig()
	if err != nil || sc.Driver != "sqlite" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("StorageConfig = %+v, %v", sc, err)
	}
	if tc := cfg.TelegramConfig(); tc.ChatID != 42 || tc.Token != "123:abc" {
		t.Fatalf("TelegramConfig = %+v", tc)
	}
	if cfg.AppName() != DefaultAppName {
		t.Fatalf("AppName = %q", cfg.AppName())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "file" || !cfg.RPC.Enabled || !cfg.Autostart.Enabled {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestDecodeKeepsDefaultsForOmittedSections(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yaml", []byte("logging:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Storage != Default().Storage || cfg.RPC != Default().RPC {
		t.Fatalf("omitted sections lost defaults: %+v %+v", cfg.Storage, cfg.RPC)
	}
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown yaml key", path: "c.yaml", body: "engine:\n  tick: 1s\n"},
		{name: "unknown json key", path: "c.json", body: `{"bogus": 1}`},
		{name: "trailing json", path: "c.json", body: `{} {}`},
		{name: "bad yaml", path: "c.yml", body: "logging: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(tt.path, []byte(tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "tick too slow", mutate: func(c *Config) { c.Engine.TickInterval = "2s" }, wantErr: "engine.tick_interval"},
		{name: "bad duration", mutate: func(c *Config) { c.Engine.TickInterval = "soon" }, wantErr: "engine.tick_interval"},
		{name: "bad timezone", mutate: func(c *Config) { c.Engine.Timezone = "Mars/Olympus" }, wantErr: "engine.timezone"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "storage.driver"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "memory without path", mutate: func(c *Config) { c.Storage = StorageConfig{Driver: "memory"} }},
		{name: "telegram without token", mutate: func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, ChatID: 1} }, wantErr: "telegram.token"},
		{name: "telegram without chat", mutate: func(c *Config) { c.Telegram = TelegramConfig{Enabled: true, Token: "t"} }, wantErr: "telegram.chat_id"},
		{name: "public rpc without token", mutate: func(c *Config) { c.RPC.Addr = "0.0.0.0:7531" }, wantErr: "rpc.token"},
		{name: "public rpc with token", mutate: func(c *Config) { c.RPC.Addr = "0.0.0.0:7531"; c.RPC.Token = "x" }},
		{name: "localhost rpc", mutate: func(c *Config) { c.RPC.Addr = "localhost:7531" }},
		{name: "bad rpc addr", mutate: func(c *Config) { c.RPC.Addr = "nope" }, wantErr: "rpc.addr"},
		{name: "disabled rpc ignores addr", mutate: func(c *Config) { c.RPC = RPCConfig{Addr: "nope"} }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	old := Default()
	next := Default()
	if ch := Diff(old, next); !ch.Empty() {
		t.Fatalf("identical configs differ: %v", ch.Sections)
	}

	next.Engine.Timezone = "UTC"
	next.Telegram.Token = "secret-token"
	ch := Diff(old, next)
	if !ch.Has("engine") || !ch.Has("telegram") || ch.Has("rpc") {
		t.Fatalf("sections = %v", ch.Sections)
	}

	var buf strings.Builder
	logx.NewWriter(&buf, "info").Info("reload", ch.Fields...)
	if strings.Contains(buf.String(), "secret-token") {
		t.Fatalf("token leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"telegram.token_set":true`) {
		t.Fatalf("token_set missing: %s", buf.String())
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	p := writeFile(t, t.TempDir(), "stretchbot.yaml", "logging:\n  level: info\n")
	m := NewManager(p, logx.Nop())
	m.debounce = 20 * time.Millisecond
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	// An invalid level must never be published.
	writeFile(t, filepath.Dir(p), "stretchbot.yaml", "logging:\n  level: loud\n")
	time.Sleep(150 * time.Millisecond)
	select {
	case cfg := <-sub:
		t.Fatalf("invalid config published: %+v", cfg.Logging)
	default:
	}

	for {
		writeFile(t, filepath.Dir(p), "stretchbot.yaml", "logging:\n  level: debug\n")
		select {
		case cfg := <-sub:
			if cfg.Logging.Level != "debug" {
				t.Fatalf("published level = %q", cfg.Logging.Level)
			}
			if m.Get() != cfg {
				t.Fatal("published config not committed")
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no config published")
		}
	}
}

func TestPublishDropsOldest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.yaml", logx.Nop())
	sub := m.Subscribe(1)
	a, b := Default(), Default()
	m.publish(a)
	m.publish(b)
	if got := <-sub; got != b {
		t.Fatal("subscriber did not receive the newest config")
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
}
