package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Assets     AssetsConfig     `mapstructure:"assets"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	RBAC       RBACConfig       `mapstructure:"rbac"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	LogLevel        string `mapstructure:"log_level"`         // gorm logger: "silent", "error", "warn", "info"
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// AnalyticsConfig holds change event publication configuration
type AnalyticsConfig struct {
	Type       string `mapstructure:"type"`        // "none", "log" or "valkey"
	ValkeyAddr string `mapstructure:"valkey_addr"` // e.g. "localhost:6379"
	Key        string `mapstructure:"key"`         // Valkey list events are pushed to
}

// AssetsConfig holds asset storage configuration
type AssetsConfig struct {
	Backend   string   `mapstructure:"backend"` // "database" or "s3"
	S3        S3Config `mapstructure:"s3"`
	LogoMaxKB int      `mapstructure:"logo_max_kb"`
}

// S3Config holds the object store used by the "s3" asset backend
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// EncryptionConfig holds the secret datasource configurations are sealed with.
// An empty secret stores configurations in plaintext.
type EncryptionConfig struct {
	Secret string `mapstructure:"secret"`
}

// RBACConfig toggles permission enforcement. Disabling it is meant for
// operator tooling run against a trusted database.
type RBACConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./tenancy.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("analytics.type", "log")
	v.SetDefault("analytics.valkey_addr", "localhost:6379")
	v.SetDefault("analytics.key", "tenancy:events")
	v.SetDefault("assets.backend", "database")
	v.SetDefault("assets.s3.bucket", "tenancy-assets")
	v.SetDefault("assets.s3.use_ssl", true)
	v.SetDefault("assets.logo_max_kb", 250)
	v.SetDefault("encryption.secret", "")
	v.SetDefault("rbac.enabled", true)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/tenancy/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override, e.g. TENANCY_DATABASE_DSN
	v.SetEnvPrefix("TENANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}
