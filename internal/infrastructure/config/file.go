package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// File holds optional overrides loaded from a YAML or TOML file. Sections
// are pointers so a file only has to name what it changes; absent sections
// leave the environment-derived Config untouched.
type File struct {
	Server    *ServerFile    `yaml:"server" toml:"server"`
	Host      *HostFile      `yaml:"host" toml:"host"`
	Recording *RecordingFile `yaml:"recording" toml:"recording"`
	Notify    *NotifyFile    `yaml:"notify" toml:"notify"`
	Logging   *LogFile       `yaml:"logging" toml:"logging"`
	RateLimit *RateLimitFile `yaml:"rate_limit" toml:"rate_limit"`
	Redaction []Pattern      `yaml:"redaction" toml:"redaction"`
}

// ServerFile overrides HTTP server settings.
type ServerFile struct {
	Port           string   `yaml:"port" toml:"port"`
	Host           string   `yaml:"host" toml:"host"`
	AuthToken      string   `yaml:"auth_token" toml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// HostFile overrides native host settings. Durations are strings in
// time.ParseDuration syntax ("30s", "1m") so both formats decode them.
type HostFile struct {
	Name           string   `yaml:"name" toml:"name"`
	Command        string   `yaml:"command" toml:"command"`
	Args           []string `yaml:"args" toml:"args"`
	RequestTimeout string   `yaml:"request_timeout" toml:"request_timeout"`
	HealthInterval string   `yaml:"health_interval" toml:"health_interval"`
}

// RecordingFile overrides recording settings.
type RecordingFile struct {
	MaxSessions        int      `yaml:"max_sessions" toml:"max_sessions"`
	MaxActions         int      `yaml:"max_actions" toml:"max_actions"`
	SanitizeInput      *bool    `yaml:"sanitize_input" toml:"sanitize_input"`
	CaptureScreenshots *bool    `yaml:"capture_screenshots" toml:"capture_screenshots"`
	URLFilters         []string `yaml:"url_filters" toml:"url_filters"`
	MaxAssetBytes      int      `yaml:"max_asset_bytes" toml:"max_asset_bytes"`
	MaxAssets          int      `yaml:"max_assets" toml:"max_assets"`
}

// NotifyFile overrides webhook notification settings.
type NotifyFile struct {
	WebhookURL string `yaml:"webhook_url" toml:"webhook_url"`
	Timeout    string `yaml:"timeout" toml:"timeout"`
	MaxRetries *int   `yaml:"max_retries" toml:"max_retries"`
}

// LogFile overrides logging settings.
type LogFile struct {
	Level       string `yaml:"level" toml:"level"`
	Development *bool  `yaml:"development" toml:"development"`
}

// RateLimitFile overrides rate limiting settings.
type RateLimitFile struct {
	RequestsPerSecond int   `yaml:"requests_per_second" toml:"requests_per_second"`
	BurstSize         int   `yaml:"burst_size" toml:"burst_size"`
	Enabled           *bool `yaml:"enabled" toml:"enabled"`
}

// LoadFile reads path and overlays its contents onto cfg. The format is
// chosen by extension: .yaml/.yml or .toml.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}

	return f.Apply(cfg)
}

// Apply merges the file's non-empty values into cfg.
func (f *File) Apply(cfg *Config) error {
	if f.Server != nil {
		setString(&cfg.Server.Port, f.Server.Port)
		setString(&cfg.Server.Host, f.Server.Host)
		setString(&cfg.Server.AuthToken, f.Server.AuthToken)
		if len(f.Server.AllowedOrigins) > 0 {
			cfg.Server.AllowedOrigins = f.Server.AllowedOrigins
		}
	}

	if f.Host != nil {
		setString(&cfg.Host.Name, f.Host.Name)
		setString(&cfg.Host.Command, f.Host.Command)
		if len(f.Host.Args) > 0 {
			cfg.Host.Args = f.Host.Args
		}
		if err := setDuration(&cfg.Host.RequestTimeout, f.Host.RequestTimeout); err != nil {
			return fmt.Errorf("invalid host.request_timeout: %w", err)
		}
		if err := setDuration(&cfg.Host.HealthInterval, f.Host.HealthInterval); err != nil {
			return fmt.Errorf("invalid host.health_interval: %w", err)
		}
	}

	if f.Recording != nil {
		setInt(&cfg.Recording.MaxSessions, f.Recording.MaxSessions)
		setInt(&cfg.Recording.MaxActions, f.Recording.MaxActions)
		setBool(&cfg.Recording.SanitizeInput, f.Recording.SanitizeInput)
		setBool(&cfg.Recording.CaptureScreenshots, f.Recording.CaptureScreenshots)
		if len(f.Recording.URLFilters) > 0 {
			cfg.Recording.URLFilters = f.Recording.URLFilters
		}
		if f.Recording.MaxAssetBytes > 0 {
			cfg.Recording.MaxAssetBytes = int64(f.Recording.MaxAssetBytes)
		}
		setInt(&cfg.Recording.MaxAssets, f.Recording.MaxAssets)
	}

	if f.Notify != nil {
		setString(&cfg.Notify.WebhookURL, f.Notify.WebhookURL)
		if err := setDuration(&cfg.Notify.Timeout, f.Notify.Timeout); err != nil {
			return fmt.Errorf("invalid notify.timeout: %w", err)
		}
		if f.Notify.MaxRetries != nil {
			cfg.Notify.MaxRetries = *f.Notify.MaxRetries
		}
	}

	if f.Logging != nil {
		setString(&cfg.Logging.Level, f.Logging.Level)
		setBool(&cfg.Logging.Development, f.Logging.Development)
	}

	if f.RateLimit != nil {
		setInt(&cfg.RateLimit.RequestsPerSecond, f.RateLimit.RequestsPerSecond)
		setInt(&cfg.RateLimit.Burst, f.RateLimit.BurstSize)
		setBool(&cfg.RateLimit.Enabled, f.RateLimit.Enabled)
	}

	if len(f.Redaction) > 0 {
		cfg.Redaction = append(cfg.Redaction, f.Redaction...)
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
