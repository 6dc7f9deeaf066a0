// Package config loads the daemon configuration from a YAML file and
// applies environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "/app/config/app.yaml"

// Storage and update modes.
const (
	StorageFile      = "file"
	StorageMemory    = "memory"
	StorageConfigMap = "configmap"

	UpdateNSUpdate = "nsupdate"
	UpdateRFC2136  = "rfc2136"
)

// Config represents the application configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Update       UpdateConfig       `yaml:"update"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	HTTP         HTTPConfig         `yaml:"http"`
	Registration RegistrationConfig `yaml:"registration"`
	Log          LogConfig          `yaml:"log"`
}

type StorageConfig struct {
	Type      string                 `yaml:"type"`
	File      FileStorageConfig      `yaml:"file"`
	ConfigMap ConfigMapStorageConfig `yaml:"configmap"`
}

type FileStorageConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type ConfigMapStorageConfig struct {
	Namespace  string `yaml:"namespace"`
	Name       string `yaml:"name"`
	DataKey    string `yaml:"data_key"`
	Kubeconfig string `yaml:"kubeconfig"` // empty means in-cluster
}

// UpdateConfig selects and configures the push mechanism.
type UpdateConfig struct {
	Mode        string     `yaml:"mode"`
	Binary      string     `yaml:"binary"`
	Args        []string   `yaml:"args"`
	Server      string     `yaml:"server"`
	Timeout     string     `yaml:"timeout"`
	Zone        string     `yaml:"zone"`
	ReverseZone string     `yaml:"reverse_zone"`
	TSIG        TSIGConfig `yaml:"tsig"`
}

type TSIGConfig struct {
	Name      string `yaml:"name"`
	SecretEnv string `yaml:"secret_env"`
	Algorithm string `yaml:"algorithm"`
}

type ReconcileConfig struct {
	Interval string `yaml:"interval"`
	Tick     string `yaml:"tick"`
}

type HTTPConfig struct {
	Listen string     `yaml:"listen"`
	Auth   AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
}

type RegistrationConfig struct {
	Strict *bool `yaml:"strict"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Type: StorageFile,
			File: FileStorageConfig{Path: "dnsEntries.json", Watch: true},
			ConfigMap: ConfigMapStorageConfig{
				Namespace: "default",
				Name:      "jw238ddns-records",
				DataKey:   "records.yaml",
			},
		},
		Update: UpdateConfig{
			Mode:    UpdateNSUpdate,
			Binary:  "nsupdate",
			Timeout: "30s",
		},
		Reconcile: ReconcileConfig{
			Interval: "10m",
			Tick:     "10s",
		},
		HTTP: HTTPConfig{Listen: ":8080"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

// Path returns CONFIG_PATH or DefaultPath.
func Path() string {
	return envOrDefault("CONFIG_PATH", DefaultPath)
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Storage.Type = envOrDefault("JW238DDNS_STORAGE_TYPE", c.Storage.Type)
	c.Storage.File.Path = envOrDefault("JW238DDNS_STORAGE_FILE", c.Storage.File.Path)
	c.Update.Mode = envOrDefault("JW238DDNS_UPDATE_MODE", c.Update.Mode)
	c.Update.Binary = envOrDefault("JW238DDNS_NSUPDATE_BIN", c.Update.Binary)
	c.Update.Server = envOrDefault("JW238DDNS_DNS_SERVER", c.Update.Server)
	c.Reconcile.Interval = envOrDefault("JW238DDNS_PUSH_INTERVAL", c.Reconcile.Interval)
	c.HTTP.Listen = envOrDefault("JW238DDNS_HTTP_LISTEN", c.HTTP.Listen)
	c.Log.Level = envOrDefault("JW238DDNS_LOG_LEVEL", c.Log.Level)
}

// Validate checks the configuration and the environment variables it
// refers to.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.File.Path == "" {
			return fmt.Errorf("storage.file.path is required for file storage")
		}
	case StorageMemory:
	case StorageConfigMap:
		if c.Storage.ConfigMap.Name == "" || c.Storage.ConfigMap.DataKey == "" {
			return fmt.Errorf("storage.configmap.name and data_key are required for configmap storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}

	if c.Update.Server == "" {
		return fmt.Errorf("update.server is required")
	}
	switch c.Update.Mode {
	case UpdateNSUpdate:
	case UpdateRFC2136:
		if c.Update.Zone == "" {
			return fmt.Errorf("update.zone is required for rfc2136 mode")
		}
		if c.Update.TSIG.Name != "" && c.TSIGSecret() == "" {
			return fmt.Errorf("update.tsig.name is set but environment variable %q is not set or empty", c.Update.TSIG.SecretEnv)
		}
	default:
		return fmt.Errorf("unknown update.mode %q", c.Update.Mode)
	}

	if _, err := c.UpdateTimeout(); err != nil {
		return err
	}
	interval, err := c.PushInterval()
	if err != nil {
		return err
	}
	tick, err := c.TickInterval()
	if err != nil {
		return err
	}
	if interval <= 0 || tick <= 0 {
		return fmt.Errorf("reconcile.interval and reconcile.tick must be positive")
	}

	if c.HTTP.Auth.Enabled {
		if c.HTTP.Auth.TokenEnv == "" {
			return fmt.Errorf("HTTP authentication is enabled but token_env is not configured")
		}
		if os.Getenv(c.HTTP.Auth.TokenEnv) == "" {
			return fmt.Errorf("HTTP authentication is enabled but environment variable %s is not set or empty", c.HTTP.Auth.TokenEnv)
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if f := c.Log.Format; f != "json" && f != "text" {
		return fmt.Errorf("unknown log.format %q", f)
	}
	return nil
}

// UpdateTimeout parses update.timeout. Empty or "0" disables the timeout.
func (c *Config) UpdateTimeout() (time.Duration, error) {
	return parseDuration("update.timeout", c.Update.Timeout)
}

// PushInterval parses reconcile.interval.
func (c *Config) PushInterval() (time.Duration, error) {
	return parseDuration("reconcile.interval", c.Reconcile.Interval)
}

// TickInterval parses reconcile.tick.
func (c *Config) TickInterval() (time.Duration, error) {
	return parseDuration("reconcile.tick", c.Reconcile.Tick)
}

// Strict reports whether strict registration validation is on. It is
// off unless registration.strict is set.
func (c *Config) Strict() bool {
	return c.Registration.Strict != nil && *c.Registration.Strict
}

// AuthToken returns the bearer token, or "" when auth is disabled.
func (c *Config) AuthToken() string {
	if !c.HTTP.Auth.Enabled || c.HTTP.Auth.TokenEnv == "" {
		return ""
	}
	return os.Getenv(c.HTTP.Auth.TokenEnv)
}

// TSIGSecret returns the base64 TSIG secret from the configured
// environment variable.
func (c *Config) TSIGSecret() string {
	if c.Update.TSIG.SecretEnv == "" {
		return ""
	}
	return os.Getenv(c.Update.TSIG.SecretEnv)
}

// LogLevel maps log.level to a slog.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
