package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every environment variable, e.g. CHAT_HTTP_PORT.
const envPrefix = "chat"

// Config is the system-wide settings coordinator. Precedence when loading:
// defaults, overridden by environment, overridden by an optional JSON file.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	HTTP      HTTPConfig      `json:"http"`
	WebSocket WebSocketConfig `json:"websocket"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"-"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"-" split_words:"true"`
	WriteTimeout time.Duration `json:"-" split_words:"true"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"-" split_words:"true"`
	ReadTimeout  time.Duration `json:"-" split_words:"true"`
	WriteTimeout time.Duration `json:"-" split_words:"true"`
}

// DefaultConfig returns settings for a single-process local deployment.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    "./chat.db",
			Timeout: 30 * time.Second,
		},
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	return nil
}

// LoadFromEnv returns the defaults with any CHAT_* environment overrides
// applied.
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := envconfig.Process(envPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return config, nil
}

// fileConfig mirrors Config for JSON parsing; durations arrive as strings
// like "30s" and are converted on load.
type fileConfig struct {
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"websocket"`
}

// LoadFromFile applies a JSON file on top of base and validates the result.
func LoadFromFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := *base

	if fc.Database != nil {
		if fc.Database.Path != "" {
			config.Database.Path = fc.Database.Path
		}
		applyDuration(&config.Database.Timeout, fc.Database.Timeout)
	}
	if fc.HTTP != nil {
		if fc.HTTP.Host != "" {
			config.HTTP.Host = fc.HTTP.Host
		}
		if fc.HTTP.Port > 0 {
			config.HTTP.Port = fc.HTTP.Port
		}
		applyDuration(&config.HTTP.ReadTimeout, fc.HTTP.ReadTimeout)
		applyDuration(&config.HTTP.WriteTimeout, fc.HTTP.WriteTimeout)
	}
	if fc.WebSocket != nil {
		applyDuration(&config.WebSocket.PingInterval, fc.WebSocket.PingInterval)
		applyDuration(&config.WebSocket.ReadTimeout, fc.WebSocket.ReadTimeout)
		applyDuration(&config.WebSocket.WriteTimeout, fc.WebSocket.WriteTimeout)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &config, nil
}

// Load resolves the effective configuration: defaults, then environment,
// then the JSON file at path when one is given. File errors fall back to
// the environment result rather than failing startup.
func Load(path string) (*Config, error) {
	config, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if fileCfg, err := LoadFromFile(path, config); err == nil {
			config = fileCfg
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyDuration(dst *time.Duration, value string) {
	if value == "" {
		return
	}
	if d, err := time.ParseDuration(value); err == nil {
		*dst = d
	}
}
