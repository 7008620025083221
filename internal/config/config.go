// Package config loads daemon configuration from a YAML file with
// environment variable overrides for secrets and deployment addresses.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	API      APIConfig      `yaml:"api"`
	Poll     PollConfig     `yaml:"poll"`
	Fallback FallbackConfig `yaml:"fallback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// RedisConfig configures the shared Redis instance used for the HTTP
// cache and the rate limit budget.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APIConfig configures the upstream allocation API.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	UserAgent string `yaml:"user_agent"`
}

// PollConfig configures the bulk job status poller.
type PollConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// FallbackConfig configures the per-entity fallback fetcher.
type FallbackConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads the configuration file at path, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{ListenAddr: ":8080"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		API: APIConfig{
			UserAgent: "allocation-client/1.0",
		},
		Poll: PollConfig{
			Interval:    5 * time.Second,
			MaxAttempts: 60,
		},
		Fallback: FallbackConfig{
			BatchSize:       20,
			InterBatchDelay: 200 * time.Millisecond,
			Timeout:         15 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// applyEnvOverrides lets deployment environments inject secrets and
// addresses without editing the config file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ALLOC_LISTEN_ADDR"); v != "" {
		config.Server.ListenAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALLOC_REDIS_ADDR"); v != "" {
		config.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALLOC_REDIS_PASSWORD"); v != "" {
		config.Redis.Password = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALLOC_API_BASE_URL"); v != "" {
		config.API.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("ALLOC_API_TOKEN"); v != "" {
		config.API.Token = strings.TrimSpace(v)
	}
}

func validate(config *Config) error {
	if config.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if config.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if config.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if config.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", config.Poll.Interval)
	}
	if config.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("poll.max_attempts must be positive, got %d", config.Poll.MaxAttempts)
	}
	if config.Fallback.BatchSize <= 0 {
		return fmt.Errorf("fallback.batch_size must be positive, got %d", config.Fallback.BatchSize)
	}
	if config.Fallback.InterBatchDelay < 0 {
		return fmt.Errorf("fallback.inter_batch_delay must not be negative, got %s", config.Fallback.InterBatchDelay)
	}
	return nil
}
