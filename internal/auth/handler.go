package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type unlockRequest struct {
	Email string `json:"email"`
}

type approveRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(body.Email))
	if !emailRegex.MatchString(email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) == 0 || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return
	}

	result, err := h.service.Login(r.Context(), email, body.Password, observability.ClientIP(r))
	if err != nil {
		h.respondAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	username := strings.TrimSpace(body.Username)
	email := strings.TrimSpace(strings.ToLower(body.Email))

	if username == "" || len(username) > 64 {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if !emailRegex.MatchString(email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) < minPasswordLength || len(body.Password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if body.Password != body.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput{
		Username: username,
		Email:    email,
		Password: body.Password,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":         "registration submitted for approval",
		"registration_id": user.ID,
	})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), body.Email); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "password reset request failed")
		return
	}

	// Same response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if the account exists, a reset email has been sent",
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if len(body.NewPassword) < minPasswordLength || len(body.NewPassword) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	if err := h.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "password reset failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ValidateToken confirms the bearer token the guard already validated.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization token is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":   true,
		"user_id": identity.UserID,
		"role":    identity.Role,
	})
}

// UserStatus reports whether the authenticated account still exists and is
// active, so long-lived clients can notice pauses and deletions.
func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization token is required")
		return
	}

	user, err := h.service.UserStatus(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user account no longer exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "status check failed")
		return
	}

	switch user.Status {
	case StatusPaused:
		writeError(w, http.StatusForbidden, "user account is paused")
	case StatusPending:
		writeError(w, http.StatusForbidden, "user account is pending approval")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
	}
}

// UnlockAccount clears a lockout record. Admin only (enforced by the guard).
func (h *Handler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	var body unlockRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	email := strings.TrimSpace(strings.ToLower(body.Email))
	if !emailRegex.MatchString(email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}

	identity, _ := IdentityFromContext(r.Context())
	h.service.Unlock(email, identity.UserID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "account unlocked"})
}

// ApproveUser activates a pending registration. Admin only.
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.service.ApproveUser(r.Context(), body.UserID, body.Role); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "approval failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "user approved"})
}

// PendingUsers lists registrations awaiting approval. Admin only.
func (h *Handler) PendingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListPending(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list pending users")
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}

	writeJSON(w, http.StatusOK, views)
}

// respondAuthError maps the rejection taxonomy to HTTP exactly once.
func (h *Handler) respondAuthError(w http.ResponseWriter, err error) {
	var locked ErrAccountLocked
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.As(err, &locked):
		retryAfter := int(time.Until(locked.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusLocked, "account temporarily locked due to multiple failed attempts")
	case errors.Is(err, ErrPendingApproval):
		writeError(w, http.StatusForbidden, "account pending approval")
	case errors.Is(err, ErrAccountPaused):
		writeError(w, http.StatusForbidden, "account is paused")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "login failed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
