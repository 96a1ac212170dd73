package config

import (
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	cfg := &Config{
		Upstream: UpstreamConfig{Command: "/usr/bin/mcp-server"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MissingUpstreamCommand(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Upstream.Command = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing upstream command, got nil")
	}
	if !strings.Contains(err.Error(), "Upstream.Command") {
		t.Errorf("error = %q, want to contain 'Upstream.Command'", err.Error())
	}
}

func TestValidate_InvalidStartMode(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Intercept.StartMode = "bogus"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid start mode, got nil")
	}
	if !strings.Contains(err.Error(), "Intercept.StartMode") {
		t.Errorf("error = %q, want to contain 'Intercept.StartMode'", err.Error())
	}
}

func TestValidate_ValidStartModes(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"passthrough", "intercepting"} {
		cfg := minimalValidConfig()
		cfg.Intercept.StartMode = mode
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with start_mode=%q unexpected error: %v", mode, err)
		}
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
}

func TestValidate_InvalidMetricsAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Telemetry.MetricsAddr = "not-a-host-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid metrics_addr, got nil")
	}
}

func TestValidate_EmptyMetricsAddrIsValid(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Telemetry.MetricsAddr = ""

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with empty metrics_addr unexpected error: %v", err)
	}
}

func TestValidate_ZeroConfigAfterDefaults(t *testing.T) {
	t.Parallel()

	// A user pointing mcprelay at an upstream with everything else defaulted.
	cfg := &Config{Upstream: UpstreamConfig{Command: "/usr/bin/mcp-server"}}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config unexpected error: %v", err)
	}
}
