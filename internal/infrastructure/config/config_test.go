package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
service:
  id: "test-datalog"
influx:
  url: "http://influx.example.com:8086"
  database: "karabo_test"
database:
  path: "/tmp/projects.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
project:
  default_domain: "TEST_DOMAIN"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.ID != "test-datalog" {
		t.Errorf("Service.ID = %q, want %q", cfg.Service.ID, "test-datalog")
	}

	if cfg.Influx.URL != "http://influx.example.com:8086" {
		t.Errorf("Influx.URL = %q, want %q", cfg.Influx.URL, "http://influx.example.com:8086")
	}

	if cfg.Database.Path != "/tmp/projects.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/projects.db")
	}

	if cfg.Project.DefaultDomain != "TEST_DOMAIN" {
		t.Errorf("Project.DefaultDomain = %q, want %q", cfg.Project.DefaultDomain, "TEST_DOMAIN")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
service:
  id: ""
database:
  path: "/tmp/projects.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty service.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing service ID", mutate: func(c *Config) { c.Service.ID = "" }, wantErr: true},
		{name: "missing influx url", mutate: func(c *Config) { c.Influx.URL = "" }, wantErr: true},
		{name: "missing influx database", mutate: func(c *Config) { c.Influx.Database = "" }, wantErr: true},
		{name: "zero request timeout", mutate: func(c *Config) { c.Influx.RequestTimeout = 0 }, wantErr: true},
		{name: "zero max history", mutate: func(c *Config) { c.Reader.MaxHistorySize = 0 }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing default domain", mutate: func(c *Config) { c.Project.DefaultDomain = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("DATALOG_INFLUX_URL", "http://influx.internal:8086")
	t.Setenv("DATALOG_INFLUX_USERNAME", "reader")
	t.Setenv("DATALOG_INFLUX_PASSWORD", "secret")
	t.Setenv("DATALOG_DATABASE_PATH", "/custom/path.db")
	t.Setenv("DATALOG_MQTT_HOST", "mqtt.example.com")
	t.Setenv("DATALOG_MQTT_PORT", "8883")
	t.Setenv("KARABO_PROJECT_DB_DOMAIN", "SASE1")

	applyEnvOverrides(cfg)

	if cfg.Influx.URL != "http://influx.internal:8086" {
		t.Errorf("Influx.URL = %q, want %q", cfg.Influx.URL, "http://influx.internal:8086")
	}

	if cfg.Influx.Username != "reader" || cfg.Influx.Password != "secret" {
		t.Errorf("Influx credentials = %q/%q, want reader/secret", cfg.Influx.Username, cfg.Influx.Password)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}

	if cfg.Project.DefaultDomain != "SASE1" {
		t.Errorf("Project.DefaultDomain = %q, want %q", cfg.Project.DefaultDomain, "SASE1")
	}
}

func TestDefaultDomainFallback(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Project.DefaultDomain != "CAS_INTERNAL" {
		t.Errorf("DefaultDomain = %q, want CAS_INTERNAL", cfg.Project.DefaultDomain)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Service.ID == "" {
		t.Error("defaultConfig should have non-empty Service.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig Validate() error = %v", err)
	}

	if cfg.Influx.Timeout().Seconds() != 30 {
		t.Errorf("Influx.Timeout() = %v, want 30s", cfg.Influx.Timeout())
	}
}
