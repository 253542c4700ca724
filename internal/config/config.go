// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sanction stacking policies. See Config.SanctionStacking.
const (
	StackingLatest = "latest"
	StackingMax    = "max"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env            string `mapstructure:"APP_ENV"`
	Port           string `mapstructure:"PORT"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	JWTIssuer      string `mapstructure:"JWT_ISSUER"`
	JWTAudience    string `mapstructure:"JWT_AUDIENCE"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBStatementTimeoutMS          int    `mapstructure:"DB_STATEMENT_TIMEOUT_MS"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBTxIsolation                 string `mapstructure:"DB_TX_ISOLATION"`

	RedisURL                     string `mapstructure:"REDIS_URL"`
	AvailabilityCacheTTLSeconds  int    `mapstructure:"AVAILABILITY_CACHE_TTL_SECONDS"`
	BookingTimezone              string `mapstructure:"BOOKING_TIMEZONE"`
	SanctionStacking             string `mapstructure:"SANCTION_STACKING"`
	SanctionSweepIntervalSeconds int    `mapstructure:"SANCTION_SWEEP_INTERVAL_SECONDS"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	viper.SetDefault("JWT_ISSUER", "courtbook-auth")
	viper.SetDefault("JWT_AUDIENCE", "courtbook-api")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "courtbook")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_STATEMENT_TIMEOUT_MS", 5000)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_TX_ISOLATION", "")

	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("AVAILABILITY_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("BOOKING_TIMEZONE", "UTC")
	viper.SetDefault("SANCTION_STACKING", StackingMax)
	viper.SetDefault("SANCTION_SWEEP_INTERVAL_SECONDS", 60)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.DBTxIsolation = strings.ToLower(strings.TrimSpace(c.DBTxIsolation))
	c.SanctionStacking = strings.ToLower(strings.TrimSpace(c.SanctionStacking))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the configuration targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location returns the time zone slot dates and times are interpreted in.
func (c *Config) Location() *time.Location {
	if c.BookingTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.BookingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AvailabilityCacheTTL returns the lifetime of cached availability listings.
func (c *Config) AvailabilityCacheTTL() time.Duration {
	return time.Duration(c.AvailabilityCacheTTLSeconds) * time.Second
}

// SanctionSweepInterval returns how often expired sanctions are deactivated.
func (c *Config) SanctionSweepInterval() time.Duration {
	return time.Duration(c.SanctionSweepIntervalSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DBConnMaxLifetimeMinutes < 0 {
		return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must not be negative")
	}

	switch c.SanctionStacking {
	case "", StackingLatest, StackingMax:
	default:
		return fmt.Errorf("unsupported SANCTION_STACKING %q", c.SanctionStacking)
	}

	switch c.DBTxIsolation {
	case "", "read_committed", "repeatable_read", "serializable":
	default:
		return fmt.Errorf("unsupported DB_TX_ISOLATION %q", c.DBTxIsolation)
	}

	if c.BookingTimezone != "" {
		if _, err := time.LoadLocation(c.BookingTimezone); err != nil {
			return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.BookingTimezone, err)
		}
	}

	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		return errors.New("TRACING_SAMPLE_RATIO must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.JWTSecret == "your-secret-key-change-in-production" {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
