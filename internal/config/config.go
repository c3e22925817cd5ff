// Package config provides client configuration for the completion daemon
// session: where the daemon lives, which options file seeds it, and which
// editing modes are completion-eligible.
package config

import (
	"fmt"
	"time"
)

// Config holds the full client configuration.
type Config struct {
	// Server configures the daemon subprocess.
	Server ServerConfig `toml:"server" yaml:"server"`

	// Completion configures request behavior.
	Completion CompletionConfig `toml:"completion" yaml:"completion"`

	// Log configures logging.
	Log LogConfig `toml:"log" yaml:"log"`
}

// ServerConfig describes how to launch the completion daemon.
type ServerConfig struct {
	// Command is the daemon executable.
	Command string `toml:"command" yaml:"command"`

	// Args are extra arguments placed before the generated
	// --options_file flag.
	Args []string `toml:"args" yaml:"args"`

	// Dir is the working directory for the daemon (defaults to the
	// directory containing Command).
	Dir string `toml:"dir" yaml:"dir"`

	// OptionsFile is the user's daemon settings JSON. Its hmac_secret
	// field is overwritten with the session secret before launch.
	OptionsFile string `toml:"options_file" yaml:"options_file"`

	// ExtraConf is an optional extra-configuration file loaded into the
	// daemon after startup and reloaded when it changes.
	ExtraConf string `toml:"extra_conf" yaml:"extra_conf"`
}

// CompletionConfig describes request behavior.
type CompletionConfig struct {
	// EligibleModes lists editor modes for which buffers are included in
	// requests.
	EligibleModes []string `toml:"eligible_modes" yaml:"eligible_modes"`

	// IdleSeconds is the editor-idle interval between FileReadyToParse
	// notifications.
	IdleSeconds int `toml:"idle_seconds" yaml:"idle_seconds"`

	// RequestTimeoutMS bounds a single completion request.
	RequestTimeoutMS int `toml:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// LogConfig describes logging behavior.
type LogConfig struct {
	// Level is the minimum level to log (debug, info, warn, error).
	Level string `toml:"level" yaml:"level"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Completion: CompletionConfig{
			EligibleModes: []string{
				"js-mode", "js2-mode", "javascript-mode",
				"python-mode",
				"c++-mode", "cc-mode",
			},
			IdleSeconds:      2,
			RequestTimeoutMS: 5000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// IdleInterval returns the idle interval as a duration.
func (c Config) IdleInterval() time.Duration {
	secs := c.Completion.IdleSeconds
	if secs <= 0 {
		secs = 2
	}
	return time.Duration(secs) * time.Second
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	ms := c.Completion.RequestTimeoutMS
	if ms <= 0 {
		ms = 5000
	}
	return time.Duration(ms) * time.Millisecond
}

// ModeEligible reports whether a buffer in the given editor mode should be
// included in requests.
func (c Config) ModeEligible(mode string) bool {
	for _, m := range c.Completion.EligibleModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Validate checks that required fields are present.
func (c Config) Validate() error {
	if c.Server.Command == "" {
		return &Error{Field: "server.command", Message: "daemon command is required"}
	}
	if c.Server.OptionsFile == "" {
		return &Error{Field: "server.options_file", Message: "options file path is required"}
	}
	return nil
}

// Error describes an invalid or unusable configuration.
type Error struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
