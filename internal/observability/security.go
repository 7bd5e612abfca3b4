package observability

// Security event kinds recorded by the authentication pipeline. Every
// rejection and lockout/rate-limit trigger emits one of these for audit.
const (
	EventLoginSuccess         = "login_success"
	EventLoginInvalidPassword = "login_invalid_password"
	EventLoginUserNotFound    = "login_user_not_found"
	EventLoginAccountLocked   = "login_account_locked"
	EventLoginPendingApproval = "login_pending_approval"
	EventLoginAccountPaused   = "login_account_paused"
	EventAccountLockout       = "account_lockout_triggered"
	EventAccountUnlocked      = "account_unlocked"
	EventAccountApproved      = "account_approved"
	EventRateLimitExceeded    = "rate_limit_exceeded"
	EventMissingToken         = "missing_token"
	EventTokenExpired         = "token_expired"
	EventTokenInvalid         = "token_invalid"
	EventForbidden            = "forbidden"
	EventRegistrationPending  = "registration_pending"
	EventPasswordResetRequest = "password_reset_requested"
	EventPasswordResetDone    = "password_reset_completed"
)

// SecurityEvent is one audit record: the kind of rejection or transition,
// who or what triggered it, and where it came from. Never holds secret
// material (passwords, hashes, tokens).
type SecurityEvent struct {
	Kind    string
	Email   string
	UserID  string
	IP      string
	Path    string
	Details map[string]string
}

// SecurityLogger emits named security events for monitoring and forensics.
type SecurityLogger struct {
	logger *Logger
}

func NewSecurityLogger(logger *Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger}
}

func (s *SecurityLogger) Record(event SecurityEvent) {
	e := s.logger.zl.Warn().
		Str("component", "security").
		Str("event", event.Kind)

	if event.Email != "" {
		e = e.Str("email", event.Email)
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.Path != "" {
		e = e.Str("path", event.Path)
	}
	for k, v := range event.Details {
		e = e.Str(k, v)
	}

	e.Msg("security event")
}
