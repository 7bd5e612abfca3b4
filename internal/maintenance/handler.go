package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/perivi8/Business-Guru-Backend/internal/auth"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

// CleanupHandler is invoked by the scheduler to expire in-memory lockout and
// rate-limit records and purge stale reset tokens. It authenticates with a
// shared cron secret, not a user token.
type CleanupHandler struct {
	repo           *auth.Repository
	lockout        *auth.LockoutTracker
	limiter        *auth.RouteLimiter
	logger         *observability.Logger
	cronSecret     string
	tokenRetention time.Duration
	batchSize      int
}

func NewCleanupHandler(
	repo *auth.Repository,
	lockout *auth.LockoutTracker,
	limiter *auth.RouteLimiter,
	logger *observability.Logger,
	cronSecret string,
	tokenRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		repo:           repo,
		lockout:        lockout,
		limiter:        limiter,
		logger:         logger,
		cronSecret:     strings.TrimSpace(cronSecret),
		tokenRetention: tokenRetention,
		batchSize:      batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	lockoutSwept := h.lockout.Sweep()
	limiterSwept := h.limiter.Sweep()

	deletedTokens, err := h.repo.CleanupStale(r.Context(), h.tokenRetention, h.batchSize)
	if err != nil {
		h.logger.Error("maintenance_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("maintenance_cleanup_completed", map[string]any{
		"swept_lockout_records":   lockoutSwept,
		"swept_ratelimit_windows": limiterSwept,
		"deleted_reset_tokens":    deletedTokens,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": map[string]any{
			"swept_lockout_records":   lockoutSwept,
			"swept_ratelimit_windows": limiterSwept,
			"deleted_reset_tokens":    deletedTokens,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
