package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Intercept.StartMode != "passthrough" {
		t.Errorf("Intercept.StartMode = %q, want %q", cfg.Intercept.StartMode, "passthrough")
	}
	if cfg.Replay.Timeout != "10s" {
		t.Errorf("Replay.Timeout = %q, want %q", cfg.Replay.Timeout, "10s")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.Session.Dir == "" {
		t.Error("Session.Dir should default to a non-empty path")
	}
	if cfg.Catalog.Path == "" {
		t.Error("Catalog.Path should default to a non-empty path")
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Intercept: InterceptConfig{StartMode: "intercepting"},
		Replay:    ReplayConfig{Timeout: "30s"},
		Log:       LogConfig{Level: "debug", Format: "json"},
		Session:   SessionConfig{Dir: "/tmp/custom-sessions"},
		Catalog:   CatalogConfig{Path: "/tmp/custom-catalog.db"},
	}
	cfg.SetDefaults()

	if cfg.Intercept.StartMode != "intercepting" {
		t.Errorf("StartMode was overwritten: got %q", cfg.Intercept.StartMode)
	}
	if cfg.Replay.Timeout != "30s" {
		t.Errorf("Replay.Timeout was overwritten: got %q", cfg.Replay.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level was overwritten: got %q", cfg.Log.Level)
	}
	if cfg.Session.Dir != "/tmp/custom-sessions" {
		t.Errorf("Session.Dir was overwritten: got %q", cfg.Session.Dir)
	}
	if cfg.Catalog.Path != "/tmp/custom-catalog.db" {
		t.Errorf("Catalog.Path was overwritten: got %q", cfg.Catalog.Path)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true, Log: LogConfig{Level: "info"}}
	cfg.SetDevDefaults()

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q under dev mode", cfg.Log.Level, "debug")
	}
}

func TestConfig_SetDevDefaults_NoOpWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: false, Log: LogConfig{Level: "info"}}
	cfg.SetDevDefaults()

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want unchanged %q", cfg.Log.Level, "info")
	}
}

func TestFindConfigFileInPaths_EmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_MatchesYAML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcprelay.yaml")
	_ = os.WriteFile(cfgPath, []byte("upstream:\n  command: /usr/bin/mcp-server\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_MatchesYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mcprelay.yml")
	_ = os.WriteFile(cfgPath, []byte("upstream:\n  command: /usr/bin/mcp-server\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != cfgPath {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, cfgPath)
	}
}

func TestFindConfigFileInPaths_IgnoresNoExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Simulate the binary: a file named "mcprelay" with no extension.
	_ = os.WriteFile(filepath.Join(dir, "mcprelay"), []byte("\x7fELF binary"), 0755)

	got := findConfigFileInPaths([]string{dir})
	if got != "" {
		t.Errorf("findConfigFileInPaths matched binary = %q, want empty", got)
	}
}

func TestFindConfigFileInPaths_PrefersYAMLOverYML(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "mcprelay.yaml")
	ymlPath := filepath.Join(dir, "mcprelay.yml")
	_ = os.WriteFile(yamlPath, []byte("upstream:\n  command: /usr/bin/a\n"), 0644)
	_ = os.WriteFile(ymlPath, []byte("upstream:\n  command: /usr/bin/b\n"), 0644)

	got := findConfigFileInPaths([]string{dir})
	if got != yamlPath {
		t.Errorf("findConfigFileInPaths = %q, want %q (.yaml preferred)", got, yamlPath)
	}
}
