package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Devices         []DeviceConfig  `yaml:"devices"`
	Link            LinkConfig      `yaml:"link"`
	Database        DatabaseConfig  `yaml:"database"`
	Log             LogConfig       `yaml:"log"`
	HomeKit         HomeKitConfig   `yaml:"homekit"`
	API             APIConfig       `yaml:"api"`
	Ledger          LedgerConfig    `yaml:"ledger"`
	EventBus        EventBusConfig  `yaml:"eventbus"`
	Script          string          `yaml:"script"`           // optional Lua hooks, empty = disabled
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DeviceConfig describes one configured downlighter
type DeviceConfig struct {
	Name               string `yaml:"name"`
	Address            string `yaml:"address"` // host[:port]
	RestoreOnReconnect bool   `yaml:"restore_on_reconnect"`
}

// LinkConfig contains device link timing settings, shared by all devices
type LinkConfig struct {
	ReconnectInterval Duration `yaml:"reconnect_interval"` // Fixed interval between reconnects (default: 15s)
	StatusInterval    Duration `yaml:"status_interval"`    // Status poll period (default: 20s)
	ActivityTimeout   Duration `yaml:"activity_timeout"`   // Max inbound silence while online (default: 30s)
	HandshakeTimeout  Duration `yaml:"handshake_timeout"`  // Websocket dial timeout (default: 10s)
	WriteTimeout      Duration `yaml:"write_timeout"`      // Per-frame write deadline (default: 5s)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the configured level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HomeKitConfig contains HomeKit bridge settings
type HomeKitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Pin         string `yaml:"pin"`
	Address     string `yaml:"address"`      // optional listen address, e.g. ":52100"
	StoragePath string `yaml:"storage_path"` // pairing/fs-store directory
}

// APIConfig contains local HTTP API settings
type APIConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Host         string  `yaml:"host"`
	Port         int     `yaml:"port"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	if err := validateDevices(cfg.Devices); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./sternetd.sqlite"
	}

	// Link defaults
	if cfg.Link.ReconnectInterval == 0 {
		cfg.Link.ReconnectInterval = Duration(15 * time.Second)
	}
	if cfg.Link.StatusInterval == 0 {
		cfg.Link.StatusInterval = Duration(20 * time.Second)
	}
	if cfg.Link.ActivityTimeout == 0 {
		cfg.Link.ActivityTimeout = Duration(30 * time.Second)
	}
	if cfg.Link.HandshakeTimeout == 0 {
		cfg.Link.HandshakeTimeout = Duration(10 * time.Second)
	}
	if cfg.Link.WriteTimeout == 0 {
		cfg.Link.WriteTimeout = Duration(5 * time.Second)
	}

	// HomeKit defaults
	if cfg.HomeKit.Pin == "" {
		cfg.HomeKit.Pin = "00102003"
	}
	if cfg.HomeKit.StoragePath == "" {
		cfg.HomeKit.StoragePath = "./homekit"
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 9190
	}
	if cfg.API.RateLimitRPS == 0 {
		cfg.API.RateLimitRPS = 10.0
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

// validateDevices rejects configurations that would create two controllers
// for the same physical fixture.
func validateDevices(devices []DeviceConfig) error {
	seen := make(map[string]string, len(devices))

	for i, d := range devices {
		if d.Address == "" {
			return fmt.Errorf("device %d (%q): address is required", i, d.Name)
		}
		if prev, ok := seen[d.Address]; ok {
			return fmt.Errorf("devices %q and %q share address %s", prev, d.Name, d.Address)
		}
		seen[d.Address] = d.Name
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
