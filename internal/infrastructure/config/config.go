package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the datalog services.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Influx   InfluxConfig   `yaml:"influx"`
	Archiver ArchiverConfig `yaml:"archiver"`
	Reader   ReaderConfig   `yaml:"reader"`
	Database DatabaseConfig `yaml:"database"`
	Project  ProjectConfig  `yaml:"project"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig identifies this service instance on the broker.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// InfluxConfig contains connection settings for the time-series store.
type InfluxConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// RequestTimeout is the per-query HTTP timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// ArchiverConfig contains settings for the property write path.
type ArchiverConfig struct {
	Enabled       bool `yaml:"enabled"`
	BatchSize     int  `yaml:"batch_size"`
	FlushInterval int  `yaml:"flush_interval"`
}

// ReaderConfig contains settings for the historic-data service.
type ReaderConfig struct {
	// MaxHistorySize caps the number of samples a single property-history
	// request may return regardless of what the caller asks for.
	MaxHistorySize int `yaml:"max_history_size"`
}

// DatabaseConfig contains SQLite settings for the project document store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ProjectConfig contains project-store client settings.
type ProjectConfig struct {
	// DefaultDomain is the domain used when a caller does not name one.
	// Overridable via the KARABO_PROJECT_DB_DOMAIN environment variable.
	DefaultDomain string `yaml:"default_domain"`
	// CacheRoot is the on-disk cache directory, laid out <root>/<domain>/<uuid>.
	CacheRoot string `yaml:"cache_root"`
	// NotFoundTTL is the negative-cache lifetime in seconds.
	NotFoundTTL int `yaml:"not_found_ttl"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DATALOG_SECTION_KEY
// For example: DATALOG_INFLUX_URL, DATALOG_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "datalog-001",
			Name: "datalog",
		},
		Influx: InfluxConfig{
			URL:            "http://localhost:8086",
			Database:       "karabo",
			RequestTimeout: 30,
		},
		Archiver: ArchiverConfig{
			Enabled:       false,
			BatchSize:     1000,
			FlushInterval: 1,
		},
		Reader: ReaderConfig{
			MaxHistorySize: 10000,
		},
		Database: DatabaseConfig{
			Path:        "./data/projects.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Project: ProjectConfig{
			DefaultDomain: "CAS_INTERNAL",
			CacheRoot:     "./data/project_cache",
			NotFoundTTL:   30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "datalog-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DATALOG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Influx
	if v := os.Getenv("DATALOG_INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("DATALOG_INFLUX_DATABASE"); v != "" {
		cfg.Influx.Database = v
	}
	if v := os.Getenv("DATALOG_INFLUX_USERNAME"); v != "" {
		cfg.Influx.Username = v
	}
	if v := os.Getenv("DATALOG_INFLUX_PASSWORD"); v != "" {
		cfg.Influx.Password = v
	}

	// Database
	if v := os.Getenv("DATALOG_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Project
	if v := os.Getenv("KARABO_PROJECT_DB_DOMAIN"); v != "" {
		cfg.Project.DefaultDomain = v
	}
	if v := os.Getenv("DATALOG_PROJECT_CACHE_ROOT"); v != "" {
		cfg.Project.CacheRoot = v
	}

	// MQTT
	if v := os.Getenv("DATALOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DATALOG_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("DATALOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DATALOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("DATALOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.Influx.URL == "" {
		errs = append(errs, "influx.url is required")
	}
	if c.Influx.Database == "" {
		errs = append(errs, "influx.database is required")
	}
	if c.Influx.RequestTimeout <= 0 {
		errs = append(errs, "influx.request_timeout must be positive")
	}

	if c.Reader.MaxHistorySize <= 0 {
		errs = append(errs, "reader.max_history_size must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Project.DefaultDomain == "" {
		errs = append(errs, "project.default_domain is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Timeout returns the influx per-query timeout as a Duration.
func (c *InfluxConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// NotFoundLifetime returns the negative-cache TTL as a Duration.
func (c *ProjectConfig) NotFoundLifetime() time.Duration {
	return time.Duration(c.NotFoundTTL) * time.Second
}
