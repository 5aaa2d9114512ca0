package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Database   DatabaseConfig
	JWT        JWTConfig
	App        AppConfig
	Compliance ComplianceConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT verification settings. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

// ComplianceConfig drives recompute, suppression and query behaviour.
type ComplianceConfig struct {
	MinGroupSize      int
	RecomputeSchedule string
	QueryTimeout      time.Duration
	RetryAfter        time.Duration
	HorizonDays       int
	MaxWindowDays     int
	RetainSnapshots   int
	RecomputeOnStart  bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "compliance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}

	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Compliance engine configuration
	minGroup, err := getEnvInt("COMPLIANCE_MIN_GROUP_SIZE", 6)
	if err != nil {
		return nil, err
	}
	queryTimeout, err := getEnvDuration("COMPLIANCE_QUERY_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	retryAfter, err := getEnvDuration("COMPLIANCE_RETRY_AFTER", 30*time.Second)
	if err != nil {
		return nil, err
	}
	horizon, err := getEnvInt("COMPLIANCE_HORIZON_DAYS", 400)
	if err != nil {
		return nil, err
	}
	maxWindow, err := getEnvInt("COMPLIANCE_MAX_WINDOW_DAYS", 366)
	if err != nil {
		return nil, err
	}
	retain, err := getEnvInt("COMPLIANCE_RETAIN_SNAPSHOTS", 3)
	if err != nil {
		return nil, err
	}

	config.Compliance = ComplianceConfig{
		MinGroupSize:      minGroup,
		RecomputeSchedule: getEnv("COMPLIANCE_RECOMPUTE_SCHEDULE", "0 2 * * 1"),
		QueryTimeout:      queryTimeout,
		RetryAfter:        retryAfter,
		HorizonDays:       horizon,
		MaxWindowDays:     maxWindow,
		RetainSnapshots:   retain,
		RecomputeOnStart:  getEnv("COMPLIANCE_RECOMPUTE_ON_START", "false") == "true",
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	slog.Debug("Configuration loaded", "env", config.App.Env, "schedule", config.Compliance.RecomputeSchedule)
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Compliance.MinGroupSize < 2 {
		return fmt.Errorf("COMPLIANCE_MIN_GROUP_SIZE must be at least 2")
	}
	if c.Compliance.HorizonDays < c.Compliance.MaxWindowDays {
		return fmt.Errorf("COMPLIANCE_HORIZON_DAYS must be at least COMPLIANCE_MAX_WINDOW_DAYS")
	}
	if c.Compliance.RetainSnapshots < 1 {
		return fmt.Errorf("COMPLIANCE_RETAIN_SNAPSHOTS must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Compliance.RecomputeSchedule); err != nil {
		return fmt.Errorf("invalid COMPLIANCE_RECOMPUTE_SCHEDULE: %w", err)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	return result
}
