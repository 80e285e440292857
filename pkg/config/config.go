// Package config loads daemon configuration from a YAML file with
// environment variable overrides. Every scheduling policy value lives
// here so deployments can tune behavior without rebuilding.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "15s" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full daemon configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Worker   WorkerConfig   `yaml:"worker"`
	Retry    RetryConfig    `yaml:"retry"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string     `yaml:"driver"`
	DSN    string     `yaml:"dsn"`
	Pool   PoolConfig `yaml:"pool"`
}

// PoolConfig tunes the database connection pool.
type PoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// WorkerConfig configures the worker pool and its maintenance loops.
type WorkerConfig struct {
	Concurrency         int      `yaml:"concurrency"`
	PollInterval        Duration `yaml:"poll_interval"`
	HeartbeatInterval   Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout    Duration `yaml:"heartbeat_timeout"`
	MaintenanceInterval Duration `yaml:"maintenance_interval"`
	EnableRecurring     bool     `yaml:"enable_recurring"`
}

// RetryConfig configures the job retry policy.
type RetryConfig struct {
	BaseDelay         Duration `yaml:"base_delay"`
	MaxDelay          Duration `yaml:"max_delay"`
	DefaultMaxRetries int      `yaml:"default_max_retries"`
}

// CleanupConfig configures the terminal-job retention purge.
type CleanupConfig struct {
	Interval  Duration `yaml:"interval"`
	Retention Duration `yaml:"retention"`
}

// NotifyConfig configures the in-process event hub.
type NotifyConfig struct {
	Buffer      int      `yaml:"buffer"`
	SendTimeout Duration `yaml:"send_timeout"`
}

// Default returns the configuration used when no file or overrides are
// given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "file:jobs.db?_busy_timeout=5000",
			Pool: PoolConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    10,
				ConnMaxLifetime: Duration(5 * time.Minute),
				ConnMaxIdleTime: Duration(time.Minute),
			},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Worker: WorkerConfig{
			Concurrency:         4,
			PollInterval:        Duration(time.Second),
			HeartbeatInterval:   Duration(15 * time.Second),
			HeartbeatTimeout:    Duration(time.Minute),
			MaintenanceInterval: Duration(5 * time.Second),
			EnableRecurring:     true,
		},
		Retry: RetryConfig{
			BaseDelay:         Duration(time.Second),
			MaxDelay:          Duration(5 * time.Minute),
			DefaultMaxRetries: 3,
		},
		Cleanup: CleanupConfig{
			Interval:  Duration(time.Hour),
			Retention: Duration(7 * 24 * time.Hour),
		},
		Notify: NotifyConfig{
			Buffer:      16,
			SendTimeout: Duration(100 * time.Millisecond),
		},
	}
}

// Load reads the YAML file at path, if given, over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("config: retry delays out of order: base %s, max %s",
			c.Retry.BaseDelay.Std(), c.Retry.MaxDelay.Std())
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Database.Driver = getEnv("AGM_DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("AGM_DB_DSN", cfg.Database.DSN)
	cfg.Server.Addr = getEnv("AGM_SERVER_ADDR", cfg.Server.Addr)
	cfg.Worker.Concurrency = getEnvInt("AGM_WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.HeartbeatTimeout = getEnvDuration("AGM_HEARTBEAT_TIMEOUT", cfg.Worker.HeartbeatTimeout)
	cfg.Retry.DefaultMaxRetries = getEnvInt("AGM_DEFAULT_MAX_RETRIES", cfg.Retry.DefaultMaxRetries)
	cfg.Cleanup.Retention = getEnvDuration("AGM_CLEANUP_RETENTION", cfg.Cleanup.Retention)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
