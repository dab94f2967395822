// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Webhook  WebhookConfig
	Realtime RealtimeConfig
	Mail     MailConfig
	Jobs     JobsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	Driver   string // postgres | sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env           string
	Migrations    bool
	SessionSecret string
	BaseURL       string
	SessionIdle   time.Duration
	AdminEmail    string
	AdminPassword string
}

// WebhookConfig points at the quote workflow. Server side only.
type WebhookConfig struct {
	QuoteURL string
	Secret   string
	Timeout  time.Duration
}

// RealtimeConfig selects where change events come from.
type RealtimeConfig struct {
	Mode    string // local | postgres
	Channel string
}

// MailConfig holds the SMTP relay. An empty host logs mails instead.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// JobsConfig holds the maintenance schedules.
type JobsConfig struct {
	OrphanSweepSchedule  string
	OrphanGrace          time.Duration
	OrphanDelete         bool
	SessionSweepSchedule string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	RealtimeLocal    = "local"
	RealtimePostgres = "postgres"
)

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Load reads the configuration from the environment. Unset variables get
// local development defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "toiture"),
			Password: getEnv("DB_PASSWORD", "toiture123"),
			DBName:   getEnv("DB_NAME", "toiture"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "toiture.db"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Env:           getEnv("APP_ENV", "development"),
			Migrations:    getEnvBool("MIGRATIONS", false),
			SessionSecret: getEnv("SESSION_SECRET", ""),
			BaseURL:       strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
			SessionIdle:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Webhook: WebhookConfig{
			QuoteURL: getEnv("WEBHOOK_QUOTE_URL", ""),
			Secret:   getEnv("WEBHOOK_SECRET", ""),
			Timeout:  getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		},
		Realtime: RealtimeConfig{
			Mode:    strings.ToLower(getEnv("REALTIME_MODE", RealtimeLocal)),
			Channel: getEnv("REALTIME_CHANNEL", "table_changes"),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", "no-reply@localhost"),
		},
		Jobs: JobsConfig{
			OrphanSweepSchedule:  getEnv("ORPHAN_SWEEP_SCHEDULE", "@every 1h"),
			OrphanGrace:          getEnvDuration("ORPHAN_GRACE", 24*time.Hour),
			OrphanDelete:         getEnvBool("ORPHAN_DELETE", false),
			SessionSweepSchedule: getEnv("SESSION_SWEEP_SCHEDULE", "@every 5m"),
		},
	}
}

func getEnv(key, fallback string) string {
	return lookup(key, fallback, func(v string) (string, error) { return v, nil })
}

func getEnvInt(key string, fallback int) int {
	return lookup(key, fallback, strconv.Atoi)
}

// getEnvBool treats "1", "true" and "yes" as true and any other set value
// as false.
func getEnvBool(key string, fallback bool) bool {
	return lookup(key, fallback, func(v string) (bool, error) {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true, nil
		}
		return false, nil
	})
}

// getEnvDuration takes Go durations such as "30m" or "24h".
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	return lookup(key, fallback, time.ParseDuration)
}

// lookup parses the variable key, keeping fallback when it is unset or
// does not parse.
func lookup[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}
