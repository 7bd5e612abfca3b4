package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", validSecret)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5, cfg.LockoutMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 30*time.Minute, cfg.LockoutAttemptWindow)

	assert.Equal(t, RatePolicy{5, time.Minute}, cfg.LoginRate)
	assert.Equal(t, RatePolicy{3, time.Hour}, cfg.RegisterRate)
	assert.Equal(t, RatePolicy{3, time.Hour}, cfg.ForgotPasswordRate)
	assert.Equal(t, RatePolicy{100, time.Hour}, cfg.APIRate)
	assert.Equal(t, RatePolicy{200, 24 * time.Hour}, cfg.GlobalRate)
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", validSecret)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadMissingJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadShortJWTSecretRejected(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("JWT_SECRET", "tooshort")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestLoadCORSOriginsDropWildcard(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://app.example.com, *, https://admin.example.com,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("RATE_LOGIN_MAX", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 3, cfg.LockoutMaxAttempts)
	assert.Equal(t, 10, cfg.LoginRate.Requests)
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("LOGIN_MAX_ATTEMPTS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.LockoutMaxAttempts)
}

func TestLoadAdminEmailNormalized(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_EMAIL", "  Admin@Example.COM ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", cfg.AdminEmail)
}
