package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the storage backend. Driver is either "sqlite"
// or "postgres"; DSN is a file path for sqlite and a connection string
// for postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds the token signing secret and token lifetimes.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
	RefreshTTLHours  int    `yaml:"refresh_ttl_hours"`
}

// AccessTTL returns the access token lifetime as a duration.
func (a AuthConfig) AccessTTL() time.Duration {
	return time.Duration(a.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh token lifetime as a duration.
func (a AuthConfig) RefreshTTL() time.Duration {
	return time.Duration(a.RefreshTTLHours) * time.Hour
}

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
}

// LoadConfig reads configuration from the specified YAML file. Environment
// variables override file values: CALC_SERVER_ADDR, CALC_DATABASE_DRIVER,
// CALC_DATABASE_DSN and CALC_JWT_SECRET.
func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnv(config)

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not set (set it in the config file or via CALC_JWT_SECRET)")
	}

	return config, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8001"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "calculations.db"
	cfg.Auth.AccessTTLMinutes = 15
	cfg.Auth.RefreshTTLHours = 168
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CALC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CALC_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CALC_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CALC_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
}
