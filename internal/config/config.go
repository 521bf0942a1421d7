package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults used when neither the config file nor the environment sets a value
const (
	DefaultPort      = "5000"
	DefaultDatabase  = "(default)"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultAllowedOrigins is the CORS allow-list used when none is configured
var DefaultAllowedOrigins = []string{"http://localhost:3000", "https://yourdomain.com"}

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Firebase FirebaseConfig `yaml:"firebase"`
	CORS     CORSConfig     `yaml:"cors"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// FirebaseConfig holds identity provider and document store settings
type FirebaseConfig struct {
	ProjectID      string `yaml:"project_id"`
	Database       string `yaml:"database"`
	ServiceAccount string `yaml:"service_account"` // service account JSON, not a path
	TenantID       string `yaml:"tenant_id"`       // Identity Platform tenant (optional)
	CheckRevoked   bool   `yaml:"check_revoked"`   // reject revoked tokens (one extra lookup per request)
}

// CORSConfig holds the origin allow-list
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "console"
}

// LoadFromEnv builds the configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// Load reads configuration from an optional YAML file and applies
// environment variable overrides:
//   - PORT
//   - SERVICE_ACCOUNT
//   - FIREBASE_PROJECT_ID
//   - FIRESTORE_DATABASE
//   - FIREBASE_TENANT_ID, FIREBASE_CHECK_REVOKED
//   - CORS_ALLOWED_ORIGINS (comma separated)
//   - LOG_LEVEL, LOG_FORMAT
//
// An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT"); v != "" {
		c.Firebase.ServiceAccount = v
	}
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		c.Firebase.ProjectID = v
	}
	if v := os.Getenv("FIRESTORE_DATABASE"); v != "" {
		c.Firebase.Database = v
	}
	if v := os.Getenv("FIREBASE_TENANT_ID"); v != "" {
		c.Firebase.TenantID = v
	}
	if v, err := strconv.ParseBool(os.Getenv("FIREBASE_CHECK_REVOKED")); err == nil {
		c.Firebase.CheckRevoked = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Firebase.Database == "" {
		c.Firebase.Database = DefaultDatabase
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}

	if c.Firebase.ServiceAccount != "" && !json.Valid([]byte(c.Firebase.ServiceAccount)) {
		return fmt.Errorf("firebase.service_account is not valid JSON")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not supported (supported: json, console)", c.Logging.Format)
	}

	for i, origin := range c.CORS.AllowedOrigins {
		if origin == "" {
			return fmt.Errorf("cors.allowed_origins[%d] is empty", i)
		}
	}

	return nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

// ProjectID returns the configured project ID, falling back to the
// project_id field of the service account
func (c *Config) ProjectID() string {
	if c.Firebase.ProjectID != "" {
		return c.Firebase.ProjectID
	}
	if c.Firebase.ServiceAccount == "" {
		return ""
	}
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal([]byte(c.Firebase.ServiceAccount), &sa); err != nil {
		return ""
	}
	return sa.ProjectID
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
