// Package config provides configuration types for mcprelay.
//
// The schema covers only what the interception core and its CLI need:
// which upstream to spawn, where to persist captures, how to start in
// intercept mode, and the ambient logging/telemetry knobs. There is no
// policy engine, authentication, or multi-tenant configuration — this
// is a single-operator, single-session proxy.
package config

import (
	"os"
)

// Config is the top-level mcprelay configuration.
type Config struct {
	// Upstream configures the MCP server the proxy spawns and relays to.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// Session configures where captured sessions are persisted.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Intercept configures the engine's starting mode.
	Intercept InterceptConfig `yaml:"intercept" mapstructure:"intercept"`

	// Replay configures default behavior for the replay engine.
	Replay ReplayConfig `yaml:"replay" mapstructure:"replay"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Catalog configures the session index database.
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`

	// DevMode enables development conveniences (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// UpstreamConfig configures the MCP server the proxy spawns as a
// subprocess and relays to over stdio.
type UpstreamConfig struct {
	// Command is the path to the MCP server executable to spawn.
	Command string `yaml:"command" mapstructure:"command" validate:"required"`

	// Args are the arguments passed to Command.
	Args []string `yaml:"args" mapstructure:"args"`
}

// SessionConfig configures captured-session persistence.
type SessionConfig struct {
	// Dir names a directory for captured session JSON files. No command
	// reads it: "run" writes a session only to the path given by --save.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`

	// AutoSave is accepted in the configuration, but no command reads it;
	// a session is written once, when "run" exits with --save set, not
	// after every message.
	AutoSave bool `yaml:"auto_save" mapstructure:"auto_save"`
}

// InterceptConfig configures the intercept engine's starting state.
type InterceptConfig struct {
	// StartMode is the engine's mode when the proxy starts.
	// Valid values: "passthrough" or "intercepting".
	StartMode string `yaml:"start_mode" mapstructure:"start_mode" validate:"required,oneof=passthrough intercepting"`
}

// ReplayConfig configures default replay behavior.
type ReplayConfig struct {
	// Timeout is how long a replay waits for its paired response
	// (e.g. "10s") before reporting a timeout.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`

	// AutoHandshake, when true, sends a synthetic initialize +
	// notifications/initialized pair before the replayed request, unless
	// that request is itself an initialize. The loader defaults it to true.
	AutoHandshake bool `yaml:"auto_handshake" mapstructure:"auto_handshake"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level sets the minimum log level.
	// Valid values: "debug", "info", "warn" (or "warning"), "error".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format selects the slog handler: "text" or "json".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// MetricsAddr is the address the Prometheus metrics endpoint
	// listens on (e.g. "127.0.0.1:9090"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// TracingEnabled turns on the stdout span exporter.
	TracingEnabled bool `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
}

// CatalogConfig configures the session index database.
type CatalogConfig struct {
	// Path is the sqlite database file the catalog is stored in.
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Session.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Session.Dir = home + "/.mcprelay/sessions"
		} else {
			c.Session.Dir = "./sessions"
		}
	}
	if c.Intercept.StartMode == "" {
		c.Intercept.StartMode = "passthrough"
	}
	if c.Replay.Timeout == "" {
		c.Replay.Timeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Catalog.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Catalog.Path = home + "/.mcprelay/catalog.db"
		} else {
			c.Catalog.Path = "./catalog.db"
		}
	}
}

// SetDevDefaults applies permissive defaults for development mode,
// applied before validation so running with a minimal config works.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Log.Level == "info" {
		c.Log.Level = "debug"
	}
}
