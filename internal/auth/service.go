package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/perivi8/Business-Guru-Backend/internal/notify"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

const resetTokenTTL = time.Hour

// Service runs the authentication pipeline: lockout check, password
// verification, account-status check, token issuance. The lockout check runs
// before the password verifier so a locked account never reaches bcrypt.
type Service struct {
	store    UserStore
	lockout  *LockoutTracker
	tokens   *TokenManager
	security *observability.SecurityLogger
	notifier *notify.Dispatcher

	// verify is swappable so tests can observe whether the password stage ran.
	verify func(plain, hash string) bool
}

func NewService(
	store UserStore,
	lockout *LockoutTracker,
	tokens *TokenManager,
	security *observability.SecurityLogger,
	notifier *notify.Dispatcher,
) *Service {
	return &Service{
		store:    store,
		lockout:  lockout,
		tokens:   tokens,
		security: security,
		notifier: notifier,
		verify:   VerifyPassword,
	}
}

// Login authenticates the credential pair and returns a signed access token.
// ip is used only for security events.
func (s *Service) Login(ctx context.Context, email, password, ip string) (LoginResult, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	if locked, until := s.lockout.IsLocked(email); locked {
		s.event(observability.EventLoginAccountLocked, email, "", ip)
		return LoginResult{}, ErrAccountLocked{Until: until}
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.event(observability.EventLoginUserNotFound, email, "", ip)
			return LoginResult{}, s.recordFailure(email, ip)
		}
		return LoginResult{}, err
	}

	if !s.verify(password, user.PasswordHash) {
		s.event(observability.EventLoginInvalidPassword, email, user.ID, ip)
		return LoginResult{}, s.recordFailure(email, ip)
	}

	s.lockout.RecordSuccess(email)

	switch user.Status {
	case StatusPending:
		s.event(observability.EventLoginPendingApproval, email, user.ID, ip)
		return LoginResult{}, ErrPendingApproval
	case StatusPaused:
		s.event(observability.EventLoginAccountPaused, email, user.ID, ip)
		return LoginResult{}, ErrAccountPaused
	}

	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.event(observability.EventLoginSuccess, email, user.ID, ip)

	return LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		User:        user.View(),
	}, nil
}

// recordFailure increments the lockout counter and maps the outcome to the
// rejection the caller should surface.
func (s *Service) recordFailure(email, ip string) error {
	locked, until := s.lockout.RecordFailure(email)
	if locked {
		s.event(observability.EventAccountLockout, email, "", ip)
		return ErrAccountLocked{Until: until}
	}
	return ErrInvalidCredentials
}

// Register creates a pending account awaiting admin approval.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	email := normalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	hash, err := HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.store.Create(ctx, User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         RoleStaff,
		Status:       StatusPending,
	})
	if err != nil {
		return User{}, err
	}

	s.event(observability.EventRegistrationPending, email, user.ID, "")
	return user, nil
}

// ApproveUser activates a pending account with the given role and notifies
// the owner. Authorization (admin role) is enforced by the request guard.
func (s *Service) ApproveUser(ctx context.Context, userID, role string) error {
	if role != RoleAdmin && role != RoleStaff {
		role = RoleStaff
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateStatus(ctx, user.ID, StatusActive, role); err != nil {
		return err
	}

	s.event(observability.EventAccountApproved, user.Email, user.ID, "")
	s.dispatch(notify.Message{
		To:      []string{user.Email},
		Subject: "Your TMIS account has been approved",
		HTML:    fmt.Sprintf("<p>Hi %s, your account is now active. You can log in with your registered email.</p>", user.Username),
	})

	return nil
}

// SetUserStatus pauses or reactivates an account.
func (s *Service) SetUserStatus(ctx context.Context, userID, status string) error {
	if status != StatusActive && status != StatusPaused {
		return fmt.Errorf("unsupported status: %s", status)
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	return s.store.UpdateStatus(ctx, user.ID, status, user.Role)
}

// Unlock clears the lockout record for an account (admin override).
func (s *Service) Unlock(email, adminID string) {
	email = normalizeEmail(email)
	s.lockout.AdminUnlock(email)
	s.security.Record(observability.SecurityEvent{
		Kind:   observability.EventAccountUnlocked,
		Email:  email,
		UserID: adminID,
	})
}

// RequestPasswordReset issues a single-use reset token and emails it to the
// account owner. The response is identical whether or not the account
// exists, to prevent enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	raw, err := randomToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	if err := s.store.CreateResetToken(ctx, user.ID, raw, time.Now().UTC().Add(resetTokenTTL)); err != nil {
		return err
	}

	s.event(observability.EventPasswordResetRequest, email, user.ID, "")
	s.dispatch(notify.Message{
		To:      []string{user.Email},
		Subject: "TMIS password reset",
		HTML:    fmt.Sprintf("<p>Use this code to reset your password within the next hour: <b>%s</b></p>", raw),
	})

	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	userID, err := s.store.ConsumeResetToken(ctx, strings.TrimSpace(rawToken))
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	user, err := s.store.FindByID(ctx, userID)
	if err == nil {
		s.lockout.RecordSuccess(user.Email)
		s.event(observability.EventPasswordResetDone, user.Email, user.ID, "")
	}

	return nil
}

// UserStatus reports whether the token's account still exists and is active.
func (s *Service) UserStatus(ctx context.Context, userID string) (User, error) {
	return s.store.FindByID(ctx, userID)
}

func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	return s.store.ListPending(ctx)
}

// LockoutStatus returns the failure count and lock state for an account,
// for the admin security view.
func (s *Service) LockoutStatus(email string) (failures int, locked bool, until time.Time) {
	email = normalizeEmail(email)
	failures = s.lockout.Failures(email)
	locked, until = s.lockout.IsLocked(email)
	return failures, locked, until
}

func (s *Service) event(kind, email, userID, ip string) {
	s.security.Record(observability.SecurityEvent{
		Kind:   kind,
		Email:  email,
		UserID: userID,
		IP:     ip,
	})
}

func (s *Service) dispatch(msg notify.Message) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(msg)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
