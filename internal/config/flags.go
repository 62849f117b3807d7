package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile  = flag.String("log", "", "Write logs to this file")
	flagFPS      = flag.Int("fps", 0, "Playback frames per second")
	flagLoop     = flag.Bool("loop", false, "Loop playback")
	flagHistory  = flag.Int("history", -1, "Undo history depth (0 disables undo)")
	flagEncoding = flag.String("encoding", "", "Text encoding for new files (utf-16le, utf-8)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagFPS > 0 {
		cfg.Playback.FPS = *flagFPS
	}
	if *flagLoop {
		cfg.Playback.Loop = true
	}
	if *flagHistory >= 0 {
		cfg.Editor.HistoryDepth = *flagHistory
	}
	if *flagEncoding != "" {
		cfg.Codec.TextEncoding = *flagEncoding
	}
}
