package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that points at a config file
// when no -config flag is given.
const EnvConfigPath = "MMD_STUDIO_CONFIG"

// fileName is the config file looked up in the working and config directories.
const fileName = "mmd-studio.yaml"

// Load builds the configuration: defaults, then the first config file found,
// then flags. The result is validated.
func Load() (*Config, error) {
	cfg := Default()

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveConfigPath picks the -config flag, then $MMD_STUDIO_CONFIG, then the
// first existing candidate file. An explicitly named file must exist.
func resolveConfigPath() (string, error) {
	for _, explicit := range []string{ConfigPath(), os.Getenv(EnvConfigPath)} {
		if explicit == "" {
			continue
		}
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}

	for _, path := range []string{fileName, filepath.Join(ConfigDir(), fileName)} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// ConfigDir returns the per-user directory holding mmd-studio.yaml.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MMDStudio")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MMDStudio")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "mmd-studio")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mmd-studio")
	}
}

// loadFromFile merges the YAML file at path into cfg. Unknown keys are
// rejected and an empty file leaves cfg unchanged.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
