// Package config loads imagestudio settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// StorageConfig selects the kv/docstore backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"STUDIO_STORAGE_DRIVER"` // memory, file, sqlite
	Path   string `json:"path" yaml:"path" env:"STUDIO_STORAGE_PATH"`       // directory (file) or database file (sqlite)

	// DocumentsNamespace holds profile documents for the file driver.
	DocumentsNamespace string `json:"documents_namespace" yaml:"documents_namespace" env:"STUDIO_DOCUMENTS_NAMESPACE"`
}

// HistoryConfig tunes the image history cache.
type HistoryConfig struct {
	Namespace      string `json:"namespace" yaml:"namespace" env:"STUDIO_HISTORY_NAMESPACE"`
	Key            string `json:"key" yaml:"key" env:"STUDIO_HISTORY_KEY"`
	Limit          int    `json:"limit" yaml:"limit" env:"STUDIO_HISTORY_LIMIT"`
	DefaultAPIType string `json:"default_api_type" yaml:"default_api_type" env:"STUDIO_HISTORY_DEFAULT_API_TYPE"`
}

// SessionConfig holds the user session settings.
type SessionConfig struct {
	UsersCollection string `json:"users_collection" yaml:"users_collection" env:"STUDIO_USERS_COLLECTION"`
	AuthRouteName   string `json:"auth_route_name" yaml:"auth_route_name" env:"STUDIO_AUTH_ROUTE_NAME"`
	AuthPath        string `json:"auth_path" yaml:"auth_path" env:"STUDIO_AUTH_PATH"`
	HomePath        string `json:"home_path" yaml:"home_path" env:"STUDIO_HOME_PATH"`
}

// AuthConfig configures session token signing.
type AuthConfig struct {
	Issuer     string `json:"issuer" yaml:"issuer" env:"STUDIO_AUTH_ISSUER"`
	SigningKey string `json:"signing_key" yaml:"signing_key" env:"STUDIO_AUTH_SIGNING_KEY"` // direct key or "env:NAME"
	Namespace  string `json:"namespace" yaml:"namespace" env:"STUDIO_AUTH_NAMESPACE"`
}

// PaymentConfig builds the payment link.
type PaymentConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url" env:"STUDIO_PAYMENT_BASE_URL"`
	APIKey  string `json:"api_key" yaml:"api_key" env:"STUDIO_PAYMENT_API_KEY"` // direct key or "env:NAME"
}

// TelemetryConfig enables OTLP tracing when Endpoint is set.
type TelemetryConfig struct {
	ServiceName string `json:"service_name" yaml:"service_name" env:"STUDIO_SERVICE_NAME"`
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"STUDIO_OTEL_ENDPOINT"`
}

// Config holds the global configuration.
type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level" env:"STUDIO_LOG_LEVEL"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	Payment   PaymentConfig   `json:"payment" yaml:"payment"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Storage: StorageConfig{
			Driver:             DriverMemory,
			DocumentsNamespace: "documents",
		},
		History: HistoryConfig{
			Namespace:      "history",
			Key:            "images",
			Limit:          25,
			DefaultAPIType: "anime",
		},
		Session: SessionConfig{
			UsersCollection: "users",
			AuthRouteName:   "auth",
			AuthPath:        "/auth",
			HomePath:        "/",
		},
		Auth: AuthConfig{
			Issuer:    "imagestudio",
			Namespace: "auth",
		},
		Payment: PaymentConfig{
			BaseURL: "https://buy.stripe.com",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "imagestudio",
		},
	}
}

// Load reads path (optional) over the defaults, applies STUDIO_* environment
// overrides, resolves "env:" indirections and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Auth.SigningKey = resolveSecret(cfg.Auth.SigningKey)
	cfg.Payment.APIKey = resolveSecret(cfg.Payment.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.Storage.Driver))
	}
	if c.History.Limit <= 0 {
		errs = append(errs, fmt.Errorf("history.limit must be positive"))
	}
	errs = append(errs, c.validateNamespaces()...)
	if strings.TrimSpace(c.Session.UsersCollection) == "" {
		errs = append(errs, fmt.Errorf("session.users_collection is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateNamespaces requires the history, auth and documents namespaces to be
// set and pairwise distinct: ClearHistory wipes the whole history namespace.
func (c *Config) validateNamespaces() []error {
	named := []struct{ field, value string }{
		{"history.namespace", c.History.Namespace},
		{"auth.namespace", c.Auth.Namespace},
		{"storage.documents_namespace", c.Storage.DocumentsNamespace},
	}
	var errs []error
	seen := make(map[string]string, len(named))
	for _, n := range named {
		value := strings.TrimSpace(n.value)
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", n.field))
			continue
		}
		if other, ok := seen[value]; ok {
			errs = append(errs, fmt.Errorf("%s must differ from %s (both %q)", n.field, other, value))
			continue
		}
		seen[value] = n.field
	}
	return errs
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}

// resolveSecret 解析密钥。
// 如果值以 "env:" 开头，则从环境变量中获取实际值。
func resolveSecret(value string) string {
	if strings.HasPrefix(value, "env:") {
		return os.Getenv(strings.TrimPrefix(value, "env:"))
	}
	return value
}
