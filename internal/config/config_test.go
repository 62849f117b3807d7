package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/mmd-studio/pkg/encoding"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test playback defaults
	if cfg.Playback.FPS != 30 {
		t.Errorf("expected fps 30, got %d", cfg.Playback.FPS)
	}
	if cfg.Playback.Loop {
		t.Error("expected loop to be false by default")
	}

	// Test editor defaults
	if cfg.Editor.HistoryDepth != 64 {
		t.Errorf("expected history depth 64, got %d", cfg.Editor.HistoryDepth)
	}

	// Test codec defaults
	if codec, err := cfg.TextCodec(); err != nil || codec != encoding.UTF16LE {
		t.Errorf("expected utf-16le, got %v (%v)", codec, err)
	}
	if cfg.Codec.PMXVersion != 2.0 {
		t.Errorf("expected pmx version 2.0, got %.1f", cfg.Codec.PMXVersion)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
playback:
  fps: 60
  loop: true

editor:
  history_depth: 10

codec:
  text_encoding: "utf-8"
  pmx_version: 2.1

logging:
  level: "debug"
  log_file: "studio.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Playback.FPS != 60 {
		t.Errorf("expected fps 60, got %d", cfg.Playback.FPS)
	}
	if !cfg.Playback.Loop {
		t.Error("expected loop to be true")
	}
	if cfg.Editor.HistoryDepth != 10 {
		t.Errorf("expected history depth 10, got %d", cfg.Editor.HistoryDepth)
	}
	if codec, _ := cfg.TextCodec(); codec != encoding.UTF8 {
		t.Errorf("expected utf-8, got %s", codec)
	}
	if cfg.Codec.PMXVersion != 2.1 {
		t.Errorf("expected pmx version 2.1, got %.1f", cfg.Codec.PMXVersion)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "studio.log" {
		t.Errorf("expected log file 'studio.log', got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should be valid: %v", err)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
playback:
  fps: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero fps", func(c *Config) { c.Playback.FPS = 0 }},
		{"negative history", func(c *Config) { c.Editor.HistoryDepth = -1 }},
		{"unknown encoding", func(c *Config) { c.Codec.TextEncoding = "latin1" }},
		{"shift-jis encoding", func(c *Config) { c.Codec.TextEncoding = "shift_jis" }},
		{"pmx 1.0", func(c *Config) { c.Codec.PMXVersion = 1.0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Playback.FPS = 24
	cfg.Codec.TextEncoding = "utf-8"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Playback.FPS != 24 || loaded.Codec.TextEncoding != "utf-8" {
		t.Errorf("saved values not reloaded: %+v", loaded)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name: "debug flag",
			setup: func() {
				*flagDebug = true
			},
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() {
				*flagDebug = false
			},
		},
		{
			name: "fps flag",
			setup: func() {
				*flagFPS = 120
			},
			verify: func(cfg *Config) {
				if cfg.Playback.FPS != 120 {
					t.Errorf("expected fps 120, got %d", cfg.Playback.FPS)
				}
			},
			teardown: func() {
				*flagFPS = 0
			},
		},
		{
			name: "history flag disables undo",
			setup: func() {
				*flagHistory = 0
			},
			verify: func(cfg *Config) {
				if cfg.Editor.HistoryDepth != 0 {
					t.Errorf("expected history depth 0, got %d", cfg.Editor.HistoryDepth)
				}
			},
			teardown: func() {
				*flagHistory = -1
			},
		},
		{
			name: "unset history flag keeps default",
			setup: func() {},
			verify: func(cfg *Config) {
				if cfg.Editor.HistoryDepth != 64 {
					t.Errorf("expected history depth 64, got %d", cfg.Editor.HistoryDepth)
				}
			},
			teardown: func() {},
		},
		{
			name: "loop and encoding flags",
			setup: func() {
				*flagLoop = true
				*flagEncoding = "utf-8"
			},
			verify: func(cfg *Config) {
				if !cfg.Playback.Loop {
					t.Error("expected loop to be true")
				}
				if cfg.Codec.TextEncoding != "utf-8" {
					t.Errorf("expected utf-8, got %s", cfg.Codec.TextEncoding)
				}
			},
			teardown: func() {
				*flagLoop = false
				*flagEncoding = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			tt.setup()
			defer tt.teardown()

			// Apply flags to default config
			cfg := Default()
			applyFlags(cfg)

			// Verify
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
playback:
  fps: 24
editor:
  history_depth: 8
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagFPS = 60
	defer func() {
		*flagConfig = ""
		*flagFPS = 0
	}()

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// FPS should be from flag (60), not file (24)
	if cfg.Playback.FPS != 60 {
		t.Errorf("expected fps 60 from flag, got %d", cfg.Playback.FPS)
	}

	// History depth should be from file (8) since no flag override
	if cfg.Editor.HistoryDepth != 8 {
		t.Errorf("expected history depth 8 from file, got %d", cfg.Editor.HistoryDepth)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("playback:\n  fps: -5\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected Load to reject a negative fps")
	}
}

func TestLoadFromFileRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(configPath, []byte("playback:\n  framerate: 60\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected a misspelled key to be rejected")
	}
}

func TestLoadFromFileEmpty(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(configPath, nil, 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Playback.FPS != 30 {
		t.Errorf("empty file changed fps to %d", cfg.Playback.FPS)
	}
}

func TestLoadFromEnv(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(configPath, []byte("codec:\n  pmx_version: 2.1\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(EnvConfigPath, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Codec.PMXVersion != 2.1 {
		t.Errorf("expected pmx version 2.1 from $%s, got %.1f", EnvConfigPath, cfg.Codec.PMXVersion)
	}

	// The flag wins over the environment.
	flagPath := filepath.Join(t.TempDir(), fileName)
	if err := os.WriteFile(flagPath, []byte("codec:\n  pmx_version: 2.0\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	*flagConfig = flagPath
	defer func() { *flagConfig = "" }()
	if cfg, err = Load(); err != nil || cfg.Codec.PMXVersion != 2.0 {
		t.Errorf("expected pmx version 2.0 from the flag, got %v (%v)", cfg, err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected an error for a named config file that does not exist")
	}
}
