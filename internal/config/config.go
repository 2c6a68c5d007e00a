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
	Redemption RedemptionConfig `mapstructure:"redemption"`
	Codes      CodesConfig      `mapstructure:"codes"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
	Mailer     MailerConfig     `mapstructure:"mailer"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
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

// AuthConfig holds bearer token and password hashing configuration.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// RedemptionConfig governs the redemption engine and its endpoint.
type RedemptionConfig struct {
	// MaxRetries bounds internal retries on write conflicts against the
	// code row before the attempt is surfaced as a conflict.
	MaxRetries int `mapstructure:"max_retries"`
	// RatePerMinute limits redemption requests per user.
	RatePerMinute float64 `mapstructure:"rate_per_minute"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

// CodesConfig governs code generation.
type CodesConfig struct {
	// GeneratedLength is the length of randomly generated codes.
	GeneratedLength int `mapstructure:"generated_length"`
	// MaxCollisionRetries bounds regeneration attempts when a random code
	// collides with an existing one.
	MaxCollisionRetries int `mapstructure:"max_collision_retries"`
	// MaxBulkCount caps a single bulk generation request.
	MaxBulkCount int `mapstructure:"max_bulk_count"`
}

// RankingConfig holds ranking view configuration.
type RankingConfig struct {
	Limit int `mapstructure:"limit"`
}

// MailerConfig holds credentials email configuration.
type MailerConfig struct {
	From    string `mapstructure:"from"`
	Subject string `mapstructure:"subject"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., SERVER_ADDR, DATABASE_HOST, AUTH_JWT_SECRET
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret must be set")
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "promocode")
	v.SetDefault("database.name", "promocode")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Auth defaults
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "promocode-service")
	v.SetDefault("auth.bcrypt_cost", 10)

	// Redemption defaults
	v.SetDefault("redemption.max_retries", 3)
	v.SetDefault("redemption.rate_per_minute", 5)
	v.SetDefault("redemption.rate_burst", 5)

	// Code generation defaults
	v.SetDefault("codes.generated_length", 6)
	v.SetDefault("codes.max_collision_retries", 5)
	v.SetDefault("codes.max_bulk_count", 1000)

	// Ranking defaults
	v.SetDefault("ranking.limit", 10)

	// Mailer defaults
	v.SetDefault("mailer.from", "no-reply@promocode.local")
	v.SetDefault("mailer.subject", "Your access credentials")
}
