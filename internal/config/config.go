// Package config loads the daemon configuration from a YAML file with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Timeouts are in seconds.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

// DatabaseConfig controls list and credit persistence. An empty DSN keeps
// everything in memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	// ConnMaxLifetime is in seconds.
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WorkerConfig controls the background payout worker.
type WorkerConfig struct {
	Enabled bool `yaml:"enabled"`
	// PollInterval is in seconds.
	PollInterval int `yaml:"poll_interval"`
	BatchSize    int `yaml:"batch_size"`
}

// Load reads the configuration from BULKPAY_CONFIG, falling back to
// config/bulkpay.yaml and then to defaults when no file exists.
func Load() (*Config, error) {
	path := os.Getenv("BULKPAY_CONFIG")
	if path == "" {
		path = filepath.Join("config", "bulkpay.yaml")
		if _, err := os.Stat(path); err != nil {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnv(cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Database.DSN != "" && cfg.Database.Driver == "" {
		return nil, fmt.Errorf("database dsn set without a driver")
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present: an
// in-memory store and the worker enabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15,
			WriteTimeout: 30,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Worker: WorkerConfig{
			Enabled:      true,
			PollInterval: 15,
			BatchSize:    100,
		},
	}
}

func applyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
