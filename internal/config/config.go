package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const minJWTSecretLength = 32

// RatePolicy is one row of the rate-limit table: how many requests a single
// client address may make within the window.
type RatePolicy struct {
	Requests int
	Window   time.Duration
}

type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	JWTSecret   string
	TokenTTL    time.Duration

	LockoutMaxAttempts   int
	LockoutDuration      time.Duration
	LockoutAttemptWindow time.Duration

	LoginRate          RatePolicy
	RegisterRate       RatePolicy
	ForgotPasswordRate RatePolicy
	APIRate            RatePolicy
	GlobalRate         RatePolicy

	CORSOrigins []string

	SentryDSN     string
	CloudinaryURL string
	BrevoAPIKey   string
	NotifyFrom    string
	CronSecret    string

	AdminEmail    string
	AdminPassword string
}

// Load builds the configuration from the environment. It returns an error for
// any missing or unusable required value so the process refuses to start
// instead of failing on first use.
func Load() (*Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(jwtSecret) < minJWTSecretLength {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	cfg := &Config{
		AppEnv: envOrDefault("APP_ENV", "development"),
		Port:   envOrDefault("PORT", "8080"),

		DatabaseURL: databaseURL,
		JWTSecret:   jwtSecret,
		TokenTTL:    envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 120),

		LockoutMaxAttempts:   envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LockoutDuration:      envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
		LockoutAttemptWindow: envMinutesOrDefault("LOGIN_ATTEMPT_WINDOW_MINUTES", 30),

		LoginRate:          RatePolicy{envIntOrDefault("RATE_LOGIN_MAX", 5), time.Minute},
		RegisterRate:       RatePolicy{envIntOrDefault("RATE_REGISTER_MAX", 3), time.Hour},
		ForgotPasswordRate: RatePolicy{envIntOrDefault("RATE_FORGOT_PASSWORD_MAX", 3), time.Hour},
		APIRate:            RatePolicy{envIntOrDefault("RATE_API_MAX", 100), time.Hour},
		GlobalRate:         RatePolicy{envIntOrDefault("RATE_GLOBAL_MAX", 200), 24 * time.Hour},

		CORSOrigins: splitOrigins(os.Getenv("CORS_ORIGINS")),

		SentryDSN:     strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		CloudinaryURL: strings.TrimSpace(os.Getenv("CLOUDINARY_URL")),
		BrevoAPIKey:   strings.TrimSpace(os.Getenv("BREVO_API_KEY")),
		NotifyFrom:    strings.TrimSpace(os.Getenv("NOTIFY_FROM_EMAIL")),
		CronSecret:    strings.TrimSpace(os.Getenv("CRON_SECRET")),

		AdminEmail:    strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD")),
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" {
			// Wildcard origins are never allowed: responses carry credentials.
			continue
		}
		origins = append(origins, part)
	}
	return origins
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}
