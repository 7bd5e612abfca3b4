package auth

import (
	"errors"
	"time"
)

// Rejection taxonomy for the authentication pipeline. Handlers map these to
// HTTP statuses exactly once; messages sent to clients stay generic and never
// reveal which half of the credential pair was wrong.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrAccountPaused      = errors.New("account is paused")
	ErrMissingToken       = errors.New("missing authorization token")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrForbidden          = errors.New("insufficient role")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrResetTokenInvalid  = errors.New("invalid or expired reset token")
)

// ErrAccountLocked carries the lock expiry so handlers can emit Retry-After.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked"
}

// ErrRateLimited carries the wait until the current window rolls over.
type ErrRateLimited struct {
	RetryAfter time.Duration
}

func (e ErrRateLimited) Error() string {
	return "rate limit exceeded"
}
