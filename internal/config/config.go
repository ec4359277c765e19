package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aatumaykin/pifaas/internal/logger"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)
	if err := resolvePaths(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but falls back to Default when path does not exist.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		def := Default()
		expandEnvVars(&def)
		if err := resolvePaths(&def); err != nil {
			return nil, err
		}
		return &def, nil
	}
	return nil, err
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("server.listen is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must be >= 0 (got %v)", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be >= 1 when rate_limit is set"))
	}

	if err := validatePath(c.Functions.Dir, "functions.dir"); err != nil {
		errs = append(errs, err)
	}
	if err := validatePath(c.Logs.Dir, "logs.dir"); err != nil {
		errs = append(errs, err)
	}
	if err := validatePath(c.Schedule.MirrorFile, "schedule.mirror_file"); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(c.Schedule.Tag) == "" {
		errs = append(errs, fmt.Errorf("schedule.tag is required"))
	} else if strings.ContainsAny(c.Schedule.Tag, "\n\r") {
		errs = append(errs, fmt.Errorf("schedule.tag must be a single line"))
	}

	switch c.Schedule.Backend {
	case BackendCrontab:
		if c.Schedule.CrontabBin == "" {
			errs = append(errs, fmt.Errorf("schedule.crontab_bin is required for the crontab backend"))
		}
	case BackendFile:
		if c.Schedule.TableFile == "" {
			errs = append(errs, fmt.Errorf("schedule.table_file is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid schedule.backend: %s (expected: crontab, file)", c.Schedule.Backend))
	}

	if strings.ContainsAny(c.Schedule.CrontabUser, " \t\r\n#") {
		errs = append(errs, fmt.Errorf("schedule.crontab_user must be a single user name"))
	}

	switch c.Schedule.CommandMode {
	case CommandModeScript, CommandModeWrapper:
	default:
		errs = append(errs, fmt.Errorf("invalid schedule.command_mode: %s (expected: script, wrapper)", c.Schedule.CommandMode))
	}

	if !logger.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}
	if c.Logging.Output == "" {
		errs = append(errs, fmt.Errorf("logging.output is required"))
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, fmt.Errorf("metrics.namespace is required when metrics are enabled"))
	}

	return errs
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("%s contains a NUL byte", fieldName)
	}
	return nil
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) {
	for _, p := range []*string{
		&c.Server.Listen,
		&c.Functions.Dir,
		&c.Logs.Dir,
		&c.Schedule.MirrorFile,
		&c.Schedule.TableFile,
		&c.Schedule.CrontabUser,
		&c.Logging.Output,
		&c.Runtime.PIDFile,
	} {
		*p = expandHome(expandEnv(*p))
	}
}

// resolvePaths делает относительные пути абсолютными относительно текущего
// каталога. Cron запускает задания из $HOME, поэтому `pifaas invoke` должен
// видеть те же каталоги, что и сервер.
func resolvePaths(c *Config) error {
	paths := []*string{
		&c.Functions.Dir,
		&c.Logs.Dir,
		&c.Schedule.MirrorFile,
		&c.Schedule.TableFile,
		&c.Runtime.PIDFile,
	}
	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr":
	default:
		paths = append(paths, &c.Logging.Output)
	}

	for _, p := range paths {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	return nil
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	rest := s[end+1:]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val + rest
		}
		return parts[1] + rest
	}

	return os.Getenv(content) + rest
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
