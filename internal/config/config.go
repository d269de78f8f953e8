// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Daily      DailyConfig      `mapstructure:"daily"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds token verification configuration. The JWT secret is
// shared with the identity provider that issues the tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// AdminConfig holds the user IDs allowed to call privileged endpoints.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// DailyConfig holds daily claim configuration. Each successful claim awards
// a random number of points in [MinPoints, MaxPoints].
type DailyConfig struct {
	MinPoints int `mapstructure:"min_points"`
	MaxPoints int `mapstructure:"max_points"`
}

// PaginationConfig holds list pagination bounds.
type PaginationConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page"`
	MaxPerPage     int `mapstructure:"max_per_page"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. DATABASE_HOST, AUTH_JWT_SECRET, DAILY_MAX_POINTS.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Daily.MinPoints <= 0 || c.Daily.MaxPoints < c.Daily.MinPoints {
		return fmt.Errorf("invalid daily claim range [%d, %d]", c.Daily.MinPoints, c.Daily.MaxPoints)
	}
	if c.Pagination.DefaultPerPage <= 0 || c.Pagination.MaxPerPage < c.Pagination.DefaultPerPage {
		return fmt.Errorf("invalid pagination bounds default=%d max=%d",
			c.Pagination.DefaultPerPage, c.Pagination.MaxPerPage)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "community")
	v.SetDefault("database.name", "community")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Daily claim defaults
	v.SetDefault("daily.min_points", 5)
	v.SetDefault("daily.max_points", 25)

	// Pagination defaults
	v.SetDefault("pagination.default_per_page", 10)
	v.SetDefault("pagination.max_per_page", 100)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
