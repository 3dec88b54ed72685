package config

import "time"

// Config holds roomlinkd configuration values.
type Config struct {
	// Addr is where the local UI-surface endpoint listens.
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ServerURL overrides the room server address from settings when
	// set; normally the stored settings record wins.
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// DatabasePath is the SQLite file holding the settings record.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// KeepaliveInterval is the cadence of outbound keepalive frames.
	// Zero keeps the built-in default, negative disables them.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval" yaml:"keepalive_interval"`

	// LivenessTimeout closes a session that heard nothing from the
	// server for this long. Zero keeps the built-in default.
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout" yaml:"liveness_timeout"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              "127.0.0.1:7690",
		DatabasePath:      "roomlink.db",
		LogLevel:          "info",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
