// Package config handles studio configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/mmd-studio/pkg/encoding"
	"github.com/Faultbox/mmd-studio/pkg/pmx"
)

// Config holds all studio settings.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Editor   EditorConfig   `yaml:"editor"`
	Codec    CodecConfig    `yaml:"codec"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlaybackConfig holds motion playback settings.
type PlaybackConfig struct {
	FPS  int  `yaml:"fps"`  // Frames advanced per second of wall time
	Loop bool `yaml:"loop"` // Rewind when the last keyframe is reached
}

// EditorConfig holds editing session settings.
type EditorConfig struct {
	HistoryDepth int `yaml:"history_depth"` // Undo snapshots kept, 0 disables undo
}

// CodecConfig holds defaults for newly created files.
type CodecConfig struct {
	TextEncoding string  `yaml:"text_encoding"` // utf-16le or utf-8
	PMXVersion   float32 `yaml:"pmx_version"`   // 2.0 or 2.1
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Playback: PlaybackConfig{
			FPS:  30,
			Loop: false,
		},
		Editor: EditorConfig{
			HistoryDepth: 64,
		},
		Codec: CodecConfig{
			TextEncoding: encoding.UTF16LE.String(),
			PMXVersion:   2.0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings the studio cannot run with.
func (c *Config) Validate() error {
	if c.Playback.FPS <= 0 {
		return fmt.Errorf("playback fps must be positive, got %d", c.Playback.FPS)
	}
	if c.Editor.HistoryDepth < 0 {
		return fmt.Errorf("editor history depth must not be negative, got %d", c.Editor.HistoryDepth)
	}
	codec, err := c.TextCodec()
	if err != nil {
		return err
	}
	if codec == encoding.ShiftJIS {
		return fmt.Errorf("text encoding %s cannot be used for PMX or MVD files", codec)
	}
	if c.Codec.PMXVersion != pmx.Version20 && c.Codec.PMXVersion != pmx.Version21 {
		return fmt.Errorf("unsupported pmx version %.1f", c.Codec.PMXVersion)
	}
	return nil
}

// TextCodec returns the configured text encoding.
func (c *Config) TextCodec() (encoding.Codec, error) {
	return encoding.ParseCodec(c.Codec.TextEncoding)
}
