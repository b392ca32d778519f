package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/thumbgate/pkg/session/store"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsFillMissingSections(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: debug

session_store:
  type: sqlite
  sqlite:
    path: "`+yamlSafePath(dbPath)+`"

dispatch:
  timeout: 5s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Dispatch.Timeout != 5*time.Second {
		t.Errorf("Expected dispatch timeout 5s, got %v", cfg.Dispatch.Timeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.CookieName != "sessionid" {
		t.Errorf("Expected cookie name 'sessionid', got %q", cfg.Server.CookieName)
	}
	if cfg.SessionStore.Type != store.TypeSQLite {
		t.Errorf("Expected sqlite store, got %q", cfg.SessionStore.Type)
	}
	if cfg.SessionStore.Codec != "pickle" {
		t.Errorf("Expected default codec 'pickle', got %q", cfg.SessionStore.Codec)
	}
	if cfg.Omero.Port != 4064 {
		t.Errorf("Expected omero port 4064, got %d", cfg.Omero.Port)
	}
	if !cfg.Telemetry.Insecure {
		t.Error("Expected telemetry.insecure to default to true")
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Workers.Size <= 0 {
		t.Errorf("Expected a positive worker count, got %d", cfg.Workers.Size)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.SessionStore.Type != store.TypeRedis {
		t.Errorf("Expected default store type 'redis', got %q", cfg.SessionStore.Type)
	}
	if cfg.SessionStore.Redis.URI != "redis://localhost:6379/0" {
		t.Errorf("Unexpected default redis uri %q", cfg.SessionStore.Redis.URI)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "logging: [unclosed\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: verbose
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for unknown log level")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation failure, got: %v", err)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[server]
port = 8181
write_timeout = "40s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("Expected port 8181, got %d", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 40*time.Second {
		t.Errorf("Expected write timeout 40s, got %v", cfg.Server.WriteTimeout)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("THUMBGATE_LOGGING_LEVEL", "ERROR")
	t.Setenv("THUMBGATE_SERVER_PORT", "9191")
	t.Setenv("THUMBGATE_DISPATCH_TIMEOUT", "2s")
	t.Setenv("THUMBGATE_SESSION_STORE_REDIS_URI", "redis://cache:6379/3")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"
server:
  port: 8080
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.Server.Port)
	}
	if cfg.Dispatch.Timeout != 2*time.Second {
		t.Errorf("Expected dispatch timeout 2s from env var, got %v", cfg.Dispatch.Timeout)
	}
	if cfg.SessionStore.Redis.URI != "redis://cache:6379/3" {
		t.Errorf("Expected redis uri from env var, got %q", cfg.SessionStore.Redis.URI)
	}
}

func TestLoad_EnvironmentWithoutFile(t *testing.T) {
	t.Setenv("THUMBGATE_WORKERS_SIZE", "3")
	t.Setenv("THUMBGATE_TELEMETRY_PROFILING_PROFILE_TYPES", "cpu,goroutines")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Workers.Size != 3 {
		t.Errorf("Expected 3 workers from env var, got %d", cfg.Workers.Size)
	}
	types := cfg.Telemetry.Profiling.ProfileTypes
	if len(types) != 2 || types[0] != "cpu" || types[1] != "goroutines" {
		t.Errorf("Expected profile types [cpu goroutines], got %v", types)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "thumbgate config init") {
		t.Errorf("Expected init hint in error, got: %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Port = 8282
	cfg.Dispatch.Timeout = 12 * time.Second

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Port != 8282 {
		t.Errorf("Expected port 8282, got %d", loaded.Server.Port)
	}
	if loaded.Dispatch.Timeout != 12*time.Second {
		t.Errorf("Expected dispatch timeout 12s, got %v", loaded.Dispatch.Timeout)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	want := filepath.Join(tmpDir, "thumbgate", "config.yaml")
	if got := GetDefaultConfigPath(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no config at a fresh XDG_CONFIG_HOME")
	}
	if GetConfigDir() != filepath.Join(tmpDir, "thumbgate") {
		t.Errorf("Unexpected config dir %q", GetConfigDir())
	}
}
