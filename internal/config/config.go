package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Log      LogConfig
	SMTP     SMTPConfig
	OpenAI   OpenAIConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Env            string
	Port           string
	AllowedOrigins string
	// PublicURL is the externally reachable base URL used in emailed links.
	PublicURL string
	// OrganizationID is the tenant used by the CLI when none is given.
	OrganizationID int
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	MaxConns       int32
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// SMTPConfig configures outgoing mail. An empty Host selects the log mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout bounds dialing and each command exchanged with the relay.
	Timeout time.Duration
}

// OpenAIConfig configures the line-item drafting assistant.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// Load reads configuration.
//
// Priority (highest to lowest):
// 1. Process environment variables
// 2. A .env file in the working directory
// 3. Built-in defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:            v.GetString("app.env"),
			Port:           v.GetString("server.port"),
			AllowedOrigins: v.GetString("allowed.origins"),
			PublicURL:      strings.TrimRight(v.GetString("public.url"), "/"),
			OrganizationID: v.GetInt("organization.id"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database.url"),
			MigrationsPath: v.GetString("migrations.path"),
			MaxConns:       v.GetInt32("database.max.conns"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
			Timeout:  v.GetDuration("smtp.timeout"),
		},
		OpenAI: OpenAIConfig{
			APIKey: v.GetString("openai.api.key"),
			Model:  v.GetString("openai.model"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("migrations.path", "migrations")
	v.SetDefault("database.max.conns", 10)
	v.SetDefault("organization.id", 1)
	v.SetDefault("jwt.expiration", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "billing@localhost")
	v.SetDefault("smtp.timeout", "15s")
	v.SetDefault("openai.model", "gpt-4o-mini")
}

// validate checks settings every entry point needs.
func (c *Config) validate() error {
	if c.App.OrganizationID <= 0 {
		return fmt.Errorf("ORGANIZATION_ID must be positive")
	}
	if c.App.PublicURL == "" {
		c.App.PublicURL = "http://localhost:" + c.App.Port
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DATABASE_MAX_CONNS must be positive")
	}
	if c.App.Env == "production" && c.Log.Format != "json" {
		c.Log.Format = "json"
	}
	return nil
}

// ValidateServer checks the settings required to serve HTTP.
func (c *Config) ValidateServer() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.App.Env == "production" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.App.Env == "production" && strings.TrimSpace(c.App.AllowedOrigins) == "*" {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be '*' in production")
	}
	return nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
