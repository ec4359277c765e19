package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// LoadEnv reads KEY=VALUE pairs from path and exports them into the process
// environment. Blank lines and # comments are skipped, an optional "export "
// prefix is accepted and matching surrounding quotes are removed. Variables
// already present in the environment are left untouched.
func LoadEnv(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		os.Setenv(key, unquote(strings.TrimSpace(value)))
	}

	return nil
}

// LoadEnvOptional calls LoadEnv when path exists and is a no-op otherwise.
func LoadEnvOptional(path string) error {
	err := LoadEnv(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
