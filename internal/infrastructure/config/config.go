package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all connector configuration.
type Config struct {
	Server    ServerConfig
	Host      HostConfig
	Recording RecordingConfig
	Notify    NotifyConfig
	Logging   LogConfig
	RateLimit RateLimitConfig

	// Redaction patterns come from the config file only.
	Redaction []Pattern `ignored:"true"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" default:"8765"`
	Host           string   `envconfig:"HOST" default:"127.0.0.1"`
	AuthToken      string   `envconfig:"AUTH_TOKEN" default:""`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// HostConfig holds native messaging host configuration.
type HostConfig struct {
	Name           string        `envconfig:"NATIVE_HOST_NAME" default:"com.mkd.automation"`
	Command        string        `envconfig:"NATIVE_HOST_COMMAND" default:"mkd-host"`
	Args           []string      `envconfig:"NATIVE_HOST_ARGS"`
	RequestTimeout time.Duration `envconfig:"NATIVE_HOST_TIMEOUT" default:"30s"`
	HealthInterval time.Duration `envconfig:"NATIVE_HOST_HEALTH_INTERVAL" default:"10s"`
}

// RecordingConfig holds recording session configuration.
type RecordingConfig struct {
	MaxSessions        int      `envconfig:"RECORDING_MAX_SESSIONS" default:"20"`
	MaxActions         int      `envconfig:"RECORDING_MAX_ACTIONS" default:"10000"`
	SanitizeInput      bool     `envconfig:"RECORDING_SANITIZE" default:"true"`
	CaptureScreenshots bool     `envconfig:"RECORDING_SCREENSHOTS" default:"false"`
	URLFilters         []string `envconfig:"RECORDING_URL_FILTERS"`
	MaxAssetBytes      int64    `envconfig:"RECORDING_MAX_ASSET_BYTES" default:"2097152"`
	MaxAssets          int      `envconfig:"RECORDING_MAX_ASSETS" default:"100"`
}

// NotifyConfig holds webhook notification configuration.
type NotifyConfig struct {
	WebhookURL string        `envconfig:"WEBHOOK_URL" default:""`
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxRetries int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Pattern names a redaction rule loaded from the config file.
type Pattern struct {
	Name  string `yaml:"name" toml:"name"`
	Regex string `yaml:"regex" toml:"regex"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8765",
			Host: "127.0.0.1",
		},
		Host: HostConfig{
			Name:           "com.mkd.automation",
			Command:        "mkd-host",
			RequestTimeout: 30 * time.Second,
			HealthInterval: 10 * time.Second,
		},
		Recording: RecordingConfig{
			MaxSessions:   20,
			MaxActions:    10000,
			SanitizeInput: true,
			MaxAssetBytes: 2 * 1024 * 1024,
			MaxAssets:     100,
		},
		Notify: NotifyConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate rejects configurations that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Host.RequestTimeout < time.Second {
		return fmt.Errorf("native host timeout %s below minimum 1s", c.Host.RequestTimeout)
	}
	if c.Host.HealthInterval <= 0 {
		return fmt.Errorf("health interval must be positive, got %s", c.Host.HealthInterval)
	}
	if c.Host.Command == "" {
		return fmt.Errorf("native host command cannot be empty")
	}
	if c.Recording.MaxSessions < 1 {
		return fmt.Errorf("recording max sessions must be at least 1")
	}
	return nil
}
