package config

import (
	"strings"
	"testing"

	"github.com/marmos91/thumbgate/pkg/session/store"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidServerPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Port = 70000

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for port out of range")
	}
	if !strings.Contains(err.Error(), "max") {
		t.Errorf("Expected 'max' validation error, got: %v", err)
	}
}

func TestValidate_TelemetrySampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_UnknownStoreType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.SessionStore.Type = "memcached"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown session store type")
	}
}

func TestValidate_UnknownCodec(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.SessionStore.Codec = "msgpack"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown codec")
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Config)
		want  string
	}{
		{
			name: "sqlite without path",
			setup: func(c *Config) {
				c.SessionStore.Type = store.TypeSQLite
			},
			want: "sqlite path",
		},
		{
			name: "postgres without host",
			setup: func(c *Config) {
				c.SessionStore.Type = store.TypePostgres
				c.SessionStore.Postgres.Database = "omero"
				c.SessionStore.Postgres.User = "omero"
			},
			want: "postgres host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.setup(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_MetricsPortConflict(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = cfg.Server.Port

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when metrics and server share a port")
	}
}
