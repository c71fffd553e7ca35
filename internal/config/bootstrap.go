package config

import (
	"errors"
	"os"
	"path/filepath"
)

// userConfigNames are tried in order; the first one present wins.
var userConfigNames = []string{"config.yml", "config.yaml", "config.toml"}

// EnsureUserConfig returns the config file in dataDir, writing the built-in
// defaults to <dataDir>/config.yml when none exists yet.
func EnsureUserConfig(dataDir string) (string, error) {
	for _, name := range userConfigNames {
		p := filepath.Join(dataDir, name)
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	userPath := filepath.Join(dataDir, userConfigNames[0])
	if err := os.WriteFile(userPath, defaultYAML, 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}

// DefaultYAML is the annotated default config file.
func DefaultYAML() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}
