package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// DefaultSecretKey is used outside production when SECRET_KEY is unset.
const DefaultSecretKey = "dev-secret-key-change-this"

type Config struct {
	// HTTP Server
	Port string

	// Environment selects debug or production behaviour.
	Env string

	// Session cookie signing
	SecretKey       string
	SessionDuration time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel string

	// API
	CORSOrigins []string

	// Attempts per minute per client IP on login and signup.
	LoginRateLimit int

	// Bootstrap account created when the users table is empty
	AdminUser     string
	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	env := getEnv("APP_ENV", EnvDevelopment)

	defaultLevel := "info"
	if env == EnvDevelopment {
		defaultLevel = "debug"
	}

	secret := os.Getenv("SECRET_KEY")
	if secret == "" && env != EnvProduction {
		secret = DefaultSecretKey
	}

	return &Config{
		Port:            getEnv("PORT", "5000"),
		Env:             env,
		SecretKey:       secret,
		SessionDuration: getEnvDuration("SESSION_DURATION", 30*24*time.Hour),
		DBPath:          getEnv("DB_PATH", "expense_tracker.db"),
		LogLevel:        getEnv("LOG_LEVEL", defaultLevel),
		CORSOrigins:     getEnvList("CORS_ORIGINS"),
		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),
		AdminUser:       getEnv("ADMIN_USER", ""),
		AdminEmail:      getEnv("ADMIN_EMAIL", ""),
		AdminPassword:   getEnv("ADMIN_PASSWORD", ""),
	}
}

// Debug reports whether the app runs in development mode.
func (c *Config) Debug() bool {
	return c.Env == EnvDevelopment
}

// SecureCookies reports whether session cookies require HTTPS.
func (c *Config) SecureCookies() bool {
	return c.Env == EnvProduction
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		errors = append(errors, fmt.Sprintf("invalid environment '%s': must be one of [%s %s %s]",
			c.Env, EnvDevelopment, EnvProduction, EnvTesting))
	}

	if c.SecretKey == "" {
		errors = append(errors, "SECRET_KEY is required")
	} else if c.Env == EnvProduction {
		if c.SecretKey == DefaultSecretKey {
			errors = append(errors, "SECRET_KEY must be changed from the development default in production")
		} else if len(c.SecretKey) < 16 {
			errors = append(errors, "SECRET_KEY must be at least 16 characters in production")
		}
	}

	if c.SessionDuration < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session duration %v: must be at least 1 minute", c.SessionDuration))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
	}

	if c.AdminUser != "" && (c.AdminEmail == "" || c.AdminPassword == "") {
		errors = append(errors, "ADMIN_EMAIL and ADMIN_PASSWORD are required when ADMIN_USER is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
