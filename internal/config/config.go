package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port                  string
	DBDriver              string
	DBConn                string
	LogLevel              string
	SessionTTL            time.Duration
	SessionCookieName     string
	SessionCookieSameSite http.SameSite
	SessionCookieSecure   bool
	CORSAllowedOrigins    []string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	sameSite, err := parseSameSite(getEnv("SESSION_COOKIE_SAMESITE", "Lax"))
	if err != nil {
		return nil, err
	}

	sessionTTL, err := getEnvDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cookieSecure, err := getEnvBool("SESSION_COOKIE_SECURE", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		DBDriver:              getEnv("DB_DRIVER", "postgres"),
		DBConn:                getEnv("DB_CONN", "host=localhost port=5432 user=notes password=notes dbname=notes sslmode=disable"),
		LogLevel:              getEnv("LOG_LEVEL", "INFO"),
		SessionTTL:            sessionTTL,
		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "session"),
		SessionCookieSameSite: sameSite,
		SessionCookieSecure:   cookieSecure,
		CORSAllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite3" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite3)", cfg.DBDriver)
	}
	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}

	return cfg, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid SESSION_COOKIE_SAMESITE %q (want Lax, Strict or None)", v)
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
