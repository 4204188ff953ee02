package config

// Config is the daemon configuration file. YAML and JSON are both accepted;
// unknown keys are rejected. Durations are Go duration strings.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Engine    EngineConfig    `json:"engine"`
	Storage   StorageConfig   `json:"storage"`
	Notifier  NotifierConfig  `json:"notifier"`
	Telegram  TelegramConfig  `json:"telegram"`
	RPC       RPCConfig       `json:"rpc"`
	Autostart AutostartConfig `json:"autostart"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// EngineConfig controls the scheduling loop.
//
// Defaults: tick_interval "1s", timezone "" (Local).
type EngineConfig struct {
	TickInterval string `json:"tick_interval,omitempty"`
	Timezone     string `json:"timezone,omitempty"` // IANA TZ, e.g. "Asia/Seoul"
}

// StorageConfig selects the persistence driver.
//
// Example:
//
//	storage: { driver: sqlite, path: ./stretchbot.db }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NotifierConfig struct {
	Enabled       bool   `json:"enabled"`
	QueueSize     int    `json:"queue_size,omitempty"`
	SendTimeout   string `json:"send_timeout,omitempty"`
	LogTicksEvery string `json:"log_ticks_every,omitempty"`
}

// TelegramConfig enables the Telegram sink. The token is never logged.
type TelegramConfig struct {
	Enabled    bool    `json:"enabled"`
	Token      string  `json:"token,omitempty"`
	ChatID     int64   `json:"chat_id,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
}

// RPCConfig controls the JSON-RPC listener.
//
// Prefer a loopback addr. A non-loopback addr requires a token.
type RPCConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:7531"
	Token   string `json:"token,omitempty"`
}

type AutostartConfig struct {
	Enabled bool   `json:"enabled"`
	AppName string `json:"app_name,omitempty"` // default "stretchbot"
}

// Default is used when no config file exists.
func Default() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Console: true},
		Storage:  StorageConfig{Driver: "file", Path: "./stretchbot_store"},
		Notifier: NotifierConfig{Enabled: true, LogTicksEvery: "1m"},
		RPC:      RPCConfig{Enabled: true, Addr: DefaultRPCAddr},
		Autostart: AutostartConfig{
			Enabled: true,
			AppName: DefaultAppName,
		},
	}
}

const (
	DefaultRPCAddr = "127.0.0.1:7531"
	DefaultAppName = "stretchbot"
)
