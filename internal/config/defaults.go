package config

const (
	DefaultListen     = "0.0.0.0:8080"
	DefaultFunctions  = "./functions"
	DefaultLogs       = "./logs"
	DefaultMirrorFile = "./schedules.json"
	DefaultTag        = "# FaaS PiZero"
	DefaultPIDFile    = "./.pifaas.pid"
)

// Default returns the configuration used when no file is present.
// Boolean switches default to on, so Load decodes the file on top of it.
func Default() Config {
	cfg := Config{
		Server: ServerConfig{
			Serialize: true,
		},
		Functions: FunctionsConfig{
			Watch: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Runtime: RuntimeConfig{
			SystemdNotify: true,
		},
	}
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 5
	}
	if c.Server.ReadHeaderTimeoutSeconds == 0 {
		c.Server.ReadHeaderTimeoutSeconds = 10
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}

	if c.Functions.Dir == "" {
		c.Functions.Dir = DefaultFunctions
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = DefaultLogs
	}

	if c.Schedule.MirrorFile == "" {
		c.Schedule.MirrorFile = DefaultMirrorFile
	}
	if c.Schedule.Tag == "" {
		c.Schedule.Tag = DefaultTag
	}
	if c.Schedule.Backend == "" {
		c.Schedule.Backend = BackendCrontab
	}
	if c.Schedule.CrontabBin == "" {
		c.Schedule.CrontabBin = "crontab"
	}
	if c.Schedule.CommandMode == "" {
		c.Schedule.CommandMode = CommandModeScript
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "pifaas"
	}

	if c.Runtime.PIDFile == "" {
		c.Runtime.PIDFile = DefaultPIDFile
	}
}
