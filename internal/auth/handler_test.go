package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler(rec, req)
	return rec
}

func TestLoginHandlerSuccess(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"right-password"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var result LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, "user-1", result.User.ID)
}

func TestLoginHandlerWrongPassword(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestLoginHandlerLockedAccount(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	for i := 0; i < 5; i++ {
		postJSON(t, h.Login, "/api/login",
			`{"email":"user@example.com","password":"wrong"}`)
	}

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"right-password"}`)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "temporarily locked")
}

func TestLoginHandlerPendingAccount(t *testing.T) {
	u := activeUser()
	u.Status = StatusPending
	svc, _ := newTestService(newFakeStore(u))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"right-password"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "pending approval")
}

func TestLoginHandlerPausedAccount(t *testing.T) {
	u := activeUser()
	u.Status = StatusPaused
	svc, _ := newTestService(newFakeStore(u))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"right-password"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "paused")
}

func TestLoginHandlerRejectsBadEmailFormat(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"not-an-email","password":"whatever"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginHandlerRejectsUnknownFields(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"x","extra":"field"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid json body")
}

func TestRegisterHandlerSuccess(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/register",
		`{"username":"newbie","email":"new@example.com","password":"longenough","confirm_password":"longenough"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "registration submitted for approval")
}

func TestRegisterHandlerPasswordMismatch(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/register",
		`{"username":"newbie","email":"new@example.com","password":"longenough","confirm_password":"different1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "passwords do not match")
}

func TestRegisterHandlerShortPassword(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/register",
		`{"username":"newbie","email":"new@example.com","password":"short","confirm_password":"short"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterHandlerDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.Register, "/api/register",
		`{"username":"dupe","email":"user@example.com","password":"longenough","confirm_password":"longenough"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already registered")
}

func TestForgotPasswordHandlerAlwaysGeneric(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	known := postJSON(t, h.ForgotPassword, "/api/forgot-password",
		`{"email":"user@example.com"}`)
	unknown := postJSON(t, h.ForgotPassword, "/api/forgot-password",
		`{"email":"ghost@example.com"}`)

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
}

func TestResetPasswordHandlerInvalidToken(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := postJSON(t, h.ResetPassword, "/api/reset-password",
		`{"token":"bogus","new_password":"longenough"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired reset token")
}

func TestValidateTokenHandlerWithIdentity(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/validate-token", nil)
	ctx := context.WithValue(req.Context(), identityKey, Identity{
		UserID: "user-1", Email: "user@example.com", Role: RoleStaff,
	})
	h.ValidateToken(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)
	assert.Contains(t, rec.Body.String(), "user-1")
}

func TestUserStatusHandlerDeletedAccount(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user-status", nil)
	ctx := context.WithValue(req.Context(), identityKey, Identity{UserID: "gone"})
	h.UserStatus(rec, req.WithContext(ctx))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer exists")
}

func TestUnlockAccountHandler(t *testing.T) {
	svc, _ := newTestService(newFakeStore(activeUser()))
	h := NewHandler(svc)

	for i := 0; i < 5; i++ {
		postJSON(t, h.Login, "/api/login",
			`{"email":"user@example.com","password":"wrong"}`)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/unlock-account",
		strings.NewReader(`{"email":"user@example.com"}`))
	ctx := context.WithValue(req.Context(), identityKey, Identity{UserID: "admin-1", Role: RoleAdmin})
	h.UnlockAccount(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)

	after := postJSON(t, h.Login, "/api/login",
		`{"email":"user@example.com","password":"right-password"}`)
	assert.Equal(t, http.StatusOK, after.Code)
}

func TestApproveUserHandler(t *testing.T) {
	u := activeUser()
	u.Status = StatusPending
	store := newFakeStore(u)
	svc, _ := newTestService(store)
	h := NewHandler(svc)

	rec := postJSON(t, h.ApproveUser, "/api/admin/approve-user",
		`{"user_id":"user-1","role":"staff"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	updated, _ := store.FindByID(context.Background(), "user-1")
	assert.Equal(t, StatusActive, updated.Status)
}

func TestApproveUserHandlerNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	h := NewHandler(svc)

	rec := postJSON(t, h.ApproveUser, "/api/admin/approve-user",
		`{"user_id":"ghost","role":"staff"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPendingUsersHandler(t *testing.T) {
	u := activeUser()
	u.Status = StatusPending
	svc, _ := newTestService(newFakeStore(u))
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/pending-users", nil)
	h.PendingUsers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var views []UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "user-1", views[0].ID)
	assert.Equal(t, StatusPending, views[0].Status)
}
