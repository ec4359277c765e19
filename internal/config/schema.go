// Package config provides configuration loading and validation for pifaas.
// It reads TOML files, applies defaults, expands environment variables and
// validates the result.
//
// Configuration structure:
//   - [server]: HTTP listener and request handling
//   - [functions]: functions directory and deployment watcher
//   - [logs]: per-function run log directory
//   - [schedule]: crontab reconciliation (tag, backend, mirror file)
//   - [logging]: logging level, format, and output
//   - [metrics]: Prometheus metrics
//   - [runtime]: PID file and systemd integration
//
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: dir = "${PIFAAS_FUNCTIONS:/srv/functions}"
package config

// Config represents the main application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Functions FunctionsConfig `toml:"functions"`
	Logs      LogsConfig      `toml:"logs"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Runtime   RuntimeConfig   `toml:"runtime"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Listen string `toml:"listen"`
	// Serialize handles one request at a time, as the original server did.
	Serialize                bool    `toml:"serialize"`
	RateLimit                float64 `toml:"rate_limit"` // requests per second, 0 disables
	RateBurst                int     `toml:"rate_burst"`
	ReadHeaderTimeoutSeconds int     `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int     `toml:"shutdown_timeout_seconds"`
}

// FunctionsConfig представляет конфигурацию директории функций
type FunctionsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// LogsConfig представляет конфигурацию логов запусков функций
type LogsConfig struct {
	Dir string `toml:"dir"`
}

// Schedule table backends.
const (
	BackendCrontab = "crontab"
	BackendFile    = "file"
)

// Command modes decide what the cron line executes.
const (
	CommandModeScript  = "script"
	CommandModeWrapper = "wrapper"
)

// ScheduleConfig представляет конфигурацию синхронизации с crontab
type ScheduleConfig struct {
	MirrorFile  string `toml:"mirror_file"`
	Tag         string `toml:"tag"`
	Backend     string `toml:"backend"`
	CrontabBin  string `toml:"crontab_bin"`
	CrontabUser string `toml:"crontab_user"` // crontab: "-u <user>"; file: user column (/etc/cron.d)
	TableFile   string `toml:"table_file"`
	CommandMode string `toml:"command_mode"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig представляет конфигурацию Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// RuntimeConfig holds process-level settings.
type RuntimeConfig struct {
	PIDFile       string `toml:"pid_file"`
	SystemdNotify bool   `toml:"systemd_notify"`
}
