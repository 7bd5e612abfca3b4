package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

type contextKey int

const identityKey contextKey = 0

// Identity is the authenticated principal attached to the request context.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Guard composes the per-request authentication decisions: rate limiting,
// token validation, and role checks. Handlers behind it can rely on the
// context identity being present.
type Guard struct {
	tokens   *TokenManager
	limiter  *RouteLimiter
	security *observability.SecurityLogger
}

func NewGuard(tokens *TokenManager, limiter *RouteLimiter, security *observability.SecurityLogger) *Guard {
	return &Guard{
		tokens:   tokens,
		limiter:  limiter,
		security: security,
	}
}

// RateLimit enforces the policy for one route class. Quota exhaustion is a
// distinct rejection from lockout or bad credentials so clients can back off.
func (g *Guard) RateLimit(class RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := observability.ClientIP(r)
			allowed, retryAfter := g.limiter.Allow(ip, class)
			if !allowed {
				g.security.Record(observability.SecurityEvent{
					Kind: observability.EventRateLimitExceeded,
					IP:   ip,
					Path: r.URL.Path,
					Details: map[string]string{
						"route_class": string(class),
					},
				})
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, ErrRateLimited{RetryAfter: retryAfter}.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate validates the bearer token and attaches the identity to the
// request context. The three validation failures stay distinct in security
// events but the client always sees the same 401.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := observability.ClientIP(r)

		raw, err := bearerToken(r)
		if err != nil {
			g.security.Record(observability.SecurityEvent{
				Kind: observability.EventMissingToken,
				IP:   ip,
				Path: r.URL.Path,
			})
			writeError(w, http.StatusUnauthorized, "authorization token is required")
			return
		}

		claims, err := g.tokens.Validate(raw)
		if err != nil {
			kind := observability.EventTokenInvalid
			if errors.Is(err, ErrTokenExpired) {
				kind = observability.EventTokenExpired
			}
			g.security.Record(observability.SecurityEvent{
				Kind: kind,
				IP:   ip,
				Path: r.URL.Path,
			})
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		identity := Identity{
			UserID: claims.Subject,
			Email:  claims.Email,
			Role:   claims.Role,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// RequireRole rejects authenticated requests whose role claim does not
// match. Apply after Authenticate.
func (g *Guard) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization token is required")
				return
			}
			if identity.Role != role {
				g.security.Record(observability.SecurityEvent{
					Kind:   observability.EventForbidden,
					UserID: identity.UserID,
					Email:  identity.Email,
					IP:     observability.ClientIP(r),
					Path:   r.URL.Path,
					Details: map[string]string{
						"required_role": role,
						"actual_role":   identity.Role,
					},
				})
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}

	return token, nil
}
