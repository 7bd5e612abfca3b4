package api

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perivi8/Business-Guru-Backend/internal/auth"
	"github.com/perivi8/Business-Guru-Backend/internal/client"
	"github.com/perivi8/Business-Guru-Backend/internal/config"
	"github.com/perivi8/Business-Guru-Backend/internal/enquiry"
	"github.com/perivi8/Business-Guru-Backend/internal/maintenance"
	"github.com/perivi8/Business-Guru-Backend/internal/media"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

type emptyStore struct{}

func (emptyStore) FindByEmail(context.Context, string) (auth.User, error) {
	return auth.User{}, auth.ErrUserNotFound
}
func (emptyStore) FindByID(context.Context, string) (auth.User, error) {
	return auth.User{}, auth.ErrUserNotFound
}
func (emptyStore) Create(_ context.Context, u auth.User) (auth.User, error) { return u, nil }
func (emptyStore) UpdateStatus(context.Context, string, string, string) error {
	return nil
}
func (emptyStore) UpdatePassword(context.Context, string, string) error { return nil }
func (emptyStore) ListPending(context.Context) ([]auth.User, error)     { return nil, nil }
func (emptyStore) CreateResetToken(context.Context, string, string, time.Time) error {
	return nil
}
func (emptyStore) ConsumeResetToken(context.Context, string) (string, error) {
	return "", auth.ErrResetTokenInvalid
}

// alwaysUpDriver backs /health tests with a connection that always pings fine.
type alwaysUpDriver struct{}

func (alwaysUpDriver) Open(string) (driver.Conn, error) { return alwaysUpConn{}, nil }

type alwaysUpConn struct{}

func (alwaysUpConn) Prepare(string) (driver.Stmt, error) { return nil, driver.ErrSkip }
func (alwaysUpConn) Close() error                        { return nil }
func (alwaysUpConn) Begin() (driver.Tx, error)           { return nil, driver.ErrSkip }

var registerAlwaysUp sync.Once

func alwaysUpDB(t *testing.T) *sql.DB {
	t.Helper()

	registerAlwaysUp.Do(func() { sql.Register("alwaysup", alwaysUpDriver{}) })
	db, err := sql.Open("alwaysup", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type routerConfig struct {
	env      string
	origins  []string
	policies auth.PolicyTable
	db       *sql.DB
}

func defaultRouterConfig(env string) routerConfig {
	return routerConfig{
		env:     env,
		origins: []string{"https://app.example.com"},
		policies: auth.PolicyTable{
			auth.RouteLogin:  {Requests: 3, Window: time.Minute},
			auth.RouteGlobal: {Requests: 100, Window: 24 * time.Hour},
		},
	}
}

func newTestRouter(t *testing.T, env string) (http.Handler, *auth.TokenManager) {
	t.Helper()
	return buildTestRouter(t, defaultRouterConfig(env))
}

func buildTestRouter(t *testing.T, rc routerConfig) (http.Handler, *auth.TokenManager) {
	t.Helper()

	cfg := &config.Config{
		AppEnv:      rc.env,
		CORSOrigins: rc.origins,
		TokenTTL:    2 * time.Hour,
	}
	logger := observability.NewNopLogger()
	security := observability.NewSecurityLogger(logger)

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", cfg.TokenTTL)
	lockout := auth.NewLockoutTracker(5, 15*time.Minute, 30*time.Minute)
	limiter := auth.NewRouteLimiter(rc.policies)
	guard := auth.NewGuard(tokens, limiter, security)

	svc := auth.NewService(emptyStore{}, lockout, tokens, security, nil)

	handler := NewRouter(Deps{
		Config:  cfg,
		Logger:  logger,
		DB:      rc.db,
		Guard:   guard,
		Auth:    auth.NewHandler(svc),
		Clients: client.NewHandler(client.NewRepository(nil), nil),
		Enquiry: enquiry.NewHandler(enquiry.NewRepository(nil)),
		Media:   media.NewUploadHandler(nil),
		Cleanup: maintenance.NewCleanupHandler(nil, lockout, limiter, logger, "", 14*24*time.Hour, 500),
	})
	return handler, tokens
}

func TestRouterSecurityHeaders(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/validate-token", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRouterHSTSInProduction(t *testing.T) {
	handler, _ := newTestRouter(t, "production")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/validate-token", nil)
	handler.ServeHTTP(rec, req)

	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestRouterCORSAllowedOrigin(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouterCORSDisallowedOrigin(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterCORSDeniedWhenNoOriginsConfigured(t *testing.T) {
	rc := defaultRouterConfig("development")
	rc.origins = nil
	rc.db = alwaysUpDB(t)
	handler, _ := buildTestRouter(t, rc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	handler.ServeHTTP(rec, req)

	// With credentials enabled the wildcard must never be echoed, not even
	// when no allow-list is configured.
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	handler.ServeHTTP(rec, req)

	assert.NotEqual(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterHealthExemptFromGlobalLimit(t *testing.T) {
	rc := defaultRouterConfig("development")
	rc.policies = auth.PolicyTable{
		auth.RouteLogin:  {Requests: 3, Window: time.Minute},
		auth.RouteGlobal: {Requests: 2, Window: 24 * time.Hour},
	}
	rc.db = alwaysUpDB(t)
	handler, _ := buildTestRouter(t, rc)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.9:6000"
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "health request %d", i+1)
	}

	// The same address exhausts the global quota on /api routes as before.
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/validate-token", nil)
		req.RemoteAddr = "10.0.0.9:6000"
		handler.ServeHTTP(last, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestRouterProtectedRouteRequiresToken(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterAdminRouteRequiresAdminRole(t *testing.T) {
	handler, tokens := newTestRouter(t, "development")

	raw, err := tokens.Issue("user-1", "user@example.com", auth.RoleStaff)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/pending-users", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterLoginRateLimit(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	body := `{"email":"user@example.com","password":"whatever1"}`
	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestRouterMaintenanceHiddenWithoutSecret(t *testing.T) {
	handler, _ := newTestRouter(t, "development")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
