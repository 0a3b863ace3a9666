package config

import (
	"fmt"
	"os"

	"github.com/tastyware/tastytrade/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills in the values a minimal config file may omit. The
// keepalive numbers mirror the dxLink protocol defaults (30s send window,
// 60s liveness timeout).
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Streamer.Environment == "" {
		c.Streamer.Environment = "prod"
	}
	if c.Streamer.KeepaliveInterval == 0 {
		c.Streamer.KeepaliveInterval = 30
	}
	if c.Streamer.KeepaliveTimeout == 0 {
		c.Streamer.KeepaliveTimeout = 60
	}
	if c.Backoff.BaseDelay == 0 {
		c.Backoff.BaseDelay = 1
	}
	if c.Backoff.MaxDelay == 0 {
		c.Backoff.MaxDelay = 60
	}
	if c.Backoff.JitterFraction == 0 {
		c.Backoff.JitterFraction = 0.25
	}
	if c.Backoff.ResetAfter == 0 {
		c.Backoff.ResetAfter = 120
	}
	if c.Dispatcher.QueueSize == 0 {
		c.Dispatcher.QueueSize = 512
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 30
	}
	if c.Storage.FlushInterval == 0 {
		c.Storage.FlushInterval = 5
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = 30
	}
	if c.Feed.Exchange == "" {
		c.Feed.Exchange = "NYSE"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Session configuration
	if c.Session.Login == "" {
		return fmt.Errorf("session login cannot be empty")
	}
	if c.Session.Password == "" && c.Session.RememberToken == "" {
		return fmt.Errorf("session needs a password or a remember token")
	}

	// Validate Streamer configuration
	switch c.Streamer.Environment {
	case "prod", "cert":
	default:
		return fmt.Errorf("invalid streamer environment: %q (must be 'prod' or 'cert')", c.Streamer.Environment)
	}
	if c.Streamer.KeepaliveInterval <= 0 {
		return fmt.Errorf("keepalive interval must be greater than 0")
	}
	if c.Streamer.KeepaliveTimeout <= c.Streamer.KeepaliveInterval {
		return fmt.Errorf("keepalive timeout (%d) must exceed keepalive interval (%d)",
			c.Streamer.KeepaliveTimeout, c.Streamer.KeepaliveInterval)
	}

	// Validate Backoff configuration
	if c.Backoff.BaseDelay <= 0 {
		return fmt.Errorf("backoff base delay must be greater than 0")
	}
	if c.Backoff.MaxDelay < c.Backoff.BaseDelay {
		return fmt.Errorf("backoff max delay (%g) cannot be below base delay (%g)",
			c.Backoff.MaxDelay, c.Backoff.BaseDelay)
	}
	if c.Backoff.MaxRetries < 0 {
		return fmt.Errorf("backoff max retries cannot be negative")
	}
	if c.Backoff.JitterFraction < 0 || c.Backoff.JitterFraction > 1 {
		return fmt.Errorf("backoff jitter fraction must be within [0, 1]")
	}

	// Validate Dispatcher configuration
	if c.Dispatcher.QueueSize <= 0 {
		return fmt.Errorf("dispatcher queue size must be greater than 0")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Feed configuration
	for i, src := range c.Feed.Sources {
		if src.Name == "" {
			return fmt.Errorf("feed source %d must have a name", i)
		}
		for _, kind := range src.Kinds {
			if !models.MEventType(kind).IsValid() {
				return fmt.Errorf("feed source '%s' has unknown event kind %q", src.Name, kind)
			}
		}
		for j, candle := range src.Candles {
			if candle.Symbol == "" {
				return fmt.Errorf("feed source '%s' candle %d must have a symbol", src.Name, j)
			}
			if candle.Interval == "" {
				return fmt.Errorf("feed source '%s' candle %d must have an interval", src.Name, j)
			}
		}
	}

	// Validate Storage configuration
	if c.Storage.Enabled {
		if c.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty")
		}
		if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	// Validate Publish configuration
	if c.Publish.Enabled && c.Publish.NatsURL == "" {
		return fmt.Errorf("nats url cannot be empty when publishing is enabled")
	}

	// Validate Server configuration
	if c.Server.Enabled {
		if c.Server.Host == "" {
			return fmt.Errorf("server host cannot be empty")
		}
		if c.Server.Port <= 1024 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Server.Port)
		}
	}

	// Validate Windows aggregation
	for i, window := range c.WindowsAgg {
		if window == "" {
			return fmt.Errorf("window aggregation %d cannot be empty", i)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
