// Package config holds the relay's runtime settings with the precedence
// file > environment > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	Socket   *SocketConfig   `json:"socket"`
	HTTP     *HTTPConfig     `json:"http"`
	Database *DatabaseConfig `json:"database"`
	History  *HistoryConfig  `json:"history"`
}

// SocketConfig configures the device-facing TCP listener.
type SocketConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// HTTPConfig configures the REST and bridge server.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig configures message persistence.
type DatabaseConfig struct {
	Path           string        `json:"path"`
	MaxConnections int           `json:"max_connections"`
	ConnLifetime   time.Duration `json:"conn_lifetime"`
}

// HistoryConfig bounds the in-memory message log.
type HistoryConfig struct {
	Capacity int `json:"capacity"`
}

// DefaultConfig returns the settings the relay runs with out of the box:
// devices on 8888, web on 8080, history capped at 1000.
func DefaultConfig() *Config {
	return &Config{
		Socket: &SocketConfig{
			Host: "0.0.0.0",
			Port: 8888,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: &DatabaseConfig{
			Path:           "./data/crisisconnect.db",
			MaxConnections: 10,
			ConnLifetime:   time.Hour,
		},
		History: &HistoryConfig{
			Capacity: 1000,
		},
	}
}

// Validate catches configurations that would fail at bind or open time.
func (c *Config) Validate() error {
	if c.Socket == nil {
		return fmt.Errorf("socket configuration is required")
	}
	if c.Socket.Port < 0 || c.Socket.Port > 65535 {
		return fmt.Errorf("socket port must be between 0 and 65535")
	}
	if c.Socket.Host == "" {
		return fmt.Errorf("socket host cannot be empty")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}
	if c.Database.ConnLifetime <= 0 {
		return fmt.Errorf("database connection lifetime must be positive")
	}

	if c.History == nil {
		return fmt.Errorf("history configuration is required")
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history capacity must be positive")
	}

	return nil
}

// SocketAddr returns the device listener address.
func (c *Config) SocketAddr() string {
	return fmt.Sprintf("%s:%d", c.Socket.Host, c.Socket.Port)
}

// HTTPAddr returns the web server address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// LoadFromEnv returns the defaults overridden by CRISIS_* environment
// variables. Unparseable values fall back silently.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if port := os.Getenv("CRISIS_SOCKET_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Socket.Port = p
		}
	}
	if host := os.Getenv("CRISIS_SOCKET_HOST"); host != "" {
		config.Socket.Host = host
	}
	if port := os.Getenv("CRISIS_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if host := os.Getenv("CRISIS_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if readTimeout := os.Getenv("CRISIS_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("CRISIS_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if path := os.Getenv("CRISIS_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}
	if capacity := os.Getenv("CRISIS_HISTORY_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			config.History.Capacity = c
		}
	}

	return config
}

// configFile mirrors Config for JSON parsing, with durations as strings.
type configFile struct {
	Socket *struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"socket"`
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	Database *struct {
		Path           string `json:"path"`
		MaxConnections int    `json:"max_connections"`
		ConnLifetime   string `json:"conn_lifetime"`
	} `json:"database"`
	History *struct {
		Capacity int `json:"capacity"`
	} `json:"history"`
}

// LoadFromFile reads a JSON configuration file layered over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := DefaultConfig()

	if file.Socket != nil {
		if file.Socket.Host != "" {
			config.Socket.Host = file.Socket.Host
		}
		if file.Socket.Port > 0 {
			config.Socket.Port = file.Socket.Port
		}
	}
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		if file.HTTP.ReadTimeout != "" {
			if timeout, err := time.ParseDuration(file.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = timeout
			}
		}
		if file.HTTP.WriteTimeout != "" {
			if timeout, err := time.ParseDuration(file.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = timeout
			}
		}
	}
	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		if file.Database.MaxConnections > 0 {
			config.Database.MaxConnections = file.Database.MaxConnections
		}
		if file.Database.ConnLifetime != "" {
			if lifetime, err := time.ParseDuration(file.Database.ConnLifetime); err == nil {
				config.Database.ConnLifetime = lifetime
			}
		}
	}
	if file.History != nil && file.History.Capacity > 0 {
		config.History.Capacity = file.History.Capacity
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return config, nil
}

// LoadWithPrecedence resolves the effective configuration: a readable file
// wins, then environment overrides, then defaults.
func LoadWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
		// File errors are not fatal; environment and defaults still work.
	}

	return config
}
