package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"letscrap-backend/internal/logging"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	defaultDSN         = "host=localhost user=postgres password=postgres dbname=letscrap port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:3000"

	// ConfigPathEnvVar overrides the YAML file location.
	ConfigPathEnvVar = "CONFIG_PATH"
)

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/letscrap/config.yaml",
}

type Config struct {
	HTTPPort      string        `koanf:"http_port"`
	ChatPort      string        `koanf:"chat_port"`
	DatabaseDSN   string        `koanf:"database_dsn"`
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	CORSOrigins   string        `koanf:"cors_allowed_origins"`
	LogLevel      string        `koanf:"log_level"`
	LogFormat     string        `koanf:"log_format"`
	AuthRateLimit int           `koanf:"auth_rate_limit"` // requests per minute per IP on /api/auth
}

func defaultConfig() *Config {
	return &Config{
		HTTPPort:      "8080",
		ChatPort:      "8081",
		DatabaseDSN:   defaultDSN,
		TokenTTL:      24 * time.Hour,
		CORSOrigins:   defaultCORSOrigins,
		LogLevel:      "info",
		LogFormat:     "json",
		AuthRateLimit: 20,
	}
}

// Load reads defaults, then the optional YAML file, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.warnDefaults()

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not set (JWT_SECRET)")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("jwt_secret must be at least 32 characters")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.HTTPPort == c.ChatPort {
		return fmt.Errorf("http_port and chat_port must differ")
	}
	return nil
}

// Origins splits the comma separated CORS origin list.
func (c *Config) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) warnDefaults() {
	if c.DatabaseDSN == defaultDSN {
		logging.Warn().Msg("database_dsn is using the development default, set DATABASE_DSN for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		logging.Warn().Msg("cors_allowed_origins is using the development default, set CORS_ALLOWED_ORIGINS for production")
	}
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
