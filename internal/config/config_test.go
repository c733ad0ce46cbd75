package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Database.Path != "data/regflow.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if cfg.Templates.Path != "configs/templates.yaml" {
		t.Errorf("Templates.Path = %q, want default", cfg.Templates.Path)
	}
	if !cfg.Approval.RejectionFatal {
		t.Error("Approval.RejectionFatal should default to true")
	}
	if cfg.EventBus.BufferSize != 128 {
		t.Errorf("EventBus.BufferSize = %d, want 128", cfg.EventBus.BufferSize)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want info", cfg.Logger.Level)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 3000
database:
  path: /tmp/test.db
approval:
  rejection_fatal: false
event_bus:
  buffer_size: 16
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Approval.RejectionFatal {
		t.Error("Approval.RejectionFatal should be false")
	}
	if cfg.EventBus.BufferSize != 16 {
		t.Errorf("EventBus.BufferSize = %d", cfg.EventBus.BufferSize)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REGFLOW_DB_PATH", "/var/lib/regflow/env.db")

	cfg, err := Load(writeConfig(t, "database:\n  path: from-file.db\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/var/lib/regflow/env.db" {
		t.Errorf("Database.Path = %q, env var should win", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load on missing file = nil, want error")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"empty templates path", func(c *Config) { c.Templates.Path = "" }},
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero buffer size", func(c *Config) { c.EventBus.BufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:    ServerConfig{Port: 8080},
				Database:  DatabaseConfig{Path: "data/regflow.db"},
				Templates: TemplatesConfig{Path: "configs/templates.yaml"},
				EventBus:  EventBusConfig{BufferSize: 128},
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
