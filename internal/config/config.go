package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig  `yaml:"server"`
	Session       SessionConfig `yaml:"session"`
	Logging       LoggingConfig `yaml:"logging,omitempty"`
	HomeAssistant HAConfig      `yaml:"home_assistant,omitempty"`
	MQTT          MQTTConfig    `yaml:"mqtt,omitempty"`
	Sync          SyncConfig    `yaml:"sync,omitempty"`
	Import        ImportConfig  `yaml:"import,omitempty"`
}

// ServerConfig points at the dashboard server
type ServerConfig struct {
	URL            string `yaml:"url"`                       // e.g., "http://127.0.0.1:5000"
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"` // Per-request timeout (fallback: 30)
}

// SessionConfig holds the dashboard login and its session cookies
type SessionConfig struct {
	Email    string   `yaml:"email,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Cookies  []Cookie `yaml:"cookies,omitempty"`
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string  `yaml:"name"`
	Value    string  `yaml:"value"`
	Domain   string  `yaml:"domain"`
	Path     string  `yaml:"path"`
	Expires  float64 `yaml:"expires,omitempty"`
	HTTPOnly bool    `yaml:"httpOnly,omitempty"`
	Secure   bool    `yaml:"secure,omitempty"`
	SameSite string  `yaml:"sameSite,omitempty"`
}

// LoggingConfig controls the logrus logger
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (fallback: info)
	Format string `yaml:"format,omitempty"` // text or json (fallback: text)
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`           // e.g., "http://yourdomain.local:5050"
	Token        string `yaml:"token"`         // Long-lived access token
	EntityPrefix string `yaml:"entity_prefix"` // e.g., "sensor.ecobuddy"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // fallback: "ecobuddy"
}

// SyncConfig controls the local snapshot
type SyncConfig struct {
	Days            int    `yaml:"days,omitempty"`             // Analysis window (fallback: 30)
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"` // node_exporter textfile path
}

// ImportConfig controls bulk usage import
type ImportConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // fallback: 5
}

// Load reads the config file, expanding $VARS from the environment
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetServerURL returns the dashboard URL, defaulting to the Flask dev server
func (c *Config) GetServerURL() string {
	if c.Server.URL == "" {
		return "http://127.0.0.1:5000"
	}
	return c.Server.URL
}

// GetTimeout returns the per-request timeout with a default of 30 seconds
func (c *Config) GetTimeout() time.Duration {
	if c.Server.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// GetSyncDays returns the analysis window with a default of 30 days
func (c *Config) GetSyncDays() int {
	if c.Sync.Days <= 0 {
		return 30
	}
	return c.Sync.Days
}

// GetImportRate returns the bulk import rate limit in requests per second
func (c *Config) GetImportRate() float64 {
	if c.Import.RequestsPerSecond <= 0 {
		return 5
	}
	return c.Import.RequestsPerSecond
}

// GetTopicPrefix returns the MQTT topic prefix
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "ecobuddy"
	}
	return c.MQTT.TopicPrefix
}
