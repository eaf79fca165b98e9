// Package config loads engine configuration: defaults, an optional
// taskmesh.yaml overlay, then environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/taskmesh/taskmesh/pkg/database"
)

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	LLM      LLMConfig       `yaml:"llm"`
	Runtime  RuntimeConfig   `yaml:"runtime"`
	Database database.Config `yaml:"database"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig holds gateway settings. The API key only ever comes from
// the environment, never from YAML.
type LLMConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	MaxSchemaRetries  int     `yaml:"max_schema_retries"`
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	APIKey            string  `yaml:"-"`
}

// RuntimeConfig holds session runtime settings.
type RuntimeConfig struct {
	MaxToolIterations  int           `yaml:"max_tool_iterations"`
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		LLM: LLMConfig{
			Model:            "gpt-4o",
			MaxSchemaRetries: 3,
		},
		Runtime: RuntimeConfig{
			MaxToolIterations:  8,
			SessionIdleTimeout: 30 * time.Minute,
		},
		Database: database.Config{
			Host:            "localhost",
			Port:            5432,
			User:            "taskmesh",
			Database:        "taskmesh",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, overlaid by path (when the
// file exists), overlaid by environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := mergo.Merge(cfg, &fileCfg, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setFloat(&cfg.LLM.RequestsPerMinute, "LLM_REQUESTS_PER_MINUTE")
	setInt(&cfg.Runtime.MaxToolIterations, "MAX_TOOL_ITERATIONS")
	setDuration(&cfg.Runtime.SessionIdleTimeout, "SESSION_IDLE_TIMEOUT")
	cfg.Database = database.ApplyEnv(cfg.Database)
}

func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: LLM_API_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Runtime.MaxToolIterations <= 0 {
		return fmt.Errorf("config: max_tool_iterations must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
