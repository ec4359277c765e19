package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/server"
)

// commandFunc picks what a schedule line runs. In wrapper mode the line calls
// back into this binary so out-of-band runs are logged too:
//
//	cd <workdir> && <exe> [--config <file>] invoke <name>
//
// cron starts jobs in $HOME, so the line returns to the server's working
// directory where .env and the default config are looked up.
func (a *App) commandFunc() (server.CommandFunc, error) {
	switch a.config.Schedule.CommandMode {
	case config.CommandModeScript:
		return server.ScriptCommand, nil
	case config.CommandModeWrapper:
		exe, err := resolveExecutable(a.executable)
		if err != nil {
			return nil, err
		}
		dir, err := a.resolveWorkDir()
		if err != nil {
			return nil, err
		}
		prefix := "cd " + shellQuote(dir) + " && " + shellQuote(exe)
		if a.configPath != "" {
			abs, err := filepath.Abs(a.configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve config path: %w", err)
			}
			prefix += " --config " + shellQuote(abs)
		}
		return func(name, _ string) string {
			return prefix + " invoke " + name
		}, nil
	default:
		return nil, fmt.Errorf("unsupported command mode: %s", a.config.Schedule.CommandMode)
	}
}

func (a *App) resolveWorkDir() (string, error) {
	if a.workDir != "" {
		return filepath.Abs(a.workDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return wd, nil
}

// Command returns the text a schedule line for name would run.
func (a *App) Command(name string) (string, error) {
	path, err := a.executor.Lookup(name)
	if err != nil {
		return "", err
	}
	command, err := a.commandFunc()
	if err != nil {
		return "", err
	}
	return command(name, path), nil
}

// shellQuote quotes s for /bin/sh when it has anything but safe characters.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("/._-+=:,@", r):
		return false
	}
	return true
}
