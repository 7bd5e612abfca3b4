package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/perivi8/Business-Guru-Backend/internal/auth"
	"github.com/perivi8/Business-Guru-Backend/internal/client"
	"github.com/perivi8/Business-Guru-Backend/internal/config"
	"github.com/perivi8/Business-Guru-Backend/internal/enquiry"
	"github.com/perivi8/Business-Guru-Backend/internal/maintenance"
	"github.com/perivi8/Business-Guru-Backend/internal/media"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

// Deps collects everything the router mounts.
type Deps struct {
	Config  *config.Config
	Logger  *observability.Logger
	DB      *sql.DB
	Guard   *auth.Guard
	Auth    *auth.Handler
	Clients *client.Handler
	Enquiry *enquiry.Handler
	Media   *media.UploadHandler
	Cleanup *maintenance.CleanupHandler
}

// NewRouter wires the HTTP surface: global middleware, the public auth
// endpoints behind their per-route rate limits, and the protected business
// routes behind token validation.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.RecoverMiddleware(d.Logger))
	r.Use(observability.RequestLoggingMiddleware(d.Logger))
	r.Use(securityHeaders(d.Config.IsProduction()))
	r.Use(corsMiddleware(d.Config.CORSOrigins))

	// Health probes live outside the policy limiter and carry their own
	// lightweight one, so monitors cannot starve the global quota and a busy
	// day cannot blind the monitors.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/health", healthHandler(d.DB))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(d.Guard.RateLimit(auth.RouteGlobal))

		r.Group(func(r chi.Router) {
			r.Use(d.Guard.RateLimit(auth.RouteLogin))
			r.Post("/login", d.Auth.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(d.Guard.RateLimit(auth.RouteRegister))
			r.Post("/register", d.Auth.Register)
		})
		r.Group(func(r chi.Router) {
			r.Use(d.Guard.RateLimit(auth.RouteForgotPassword))
			r.Post("/forgot-password", d.Auth.ForgotPassword)
			r.Post("/reset-password", d.Auth.ResetPassword)
		})

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(d.Guard.RateLimit(auth.RouteAPI))
			r.Use(d.Guard.Authenticate)

			r.Get("/validate-token", d.Auth.ValidateToken)
			r.Get("/user-status", d.Auth.UserStatus)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", d.Clients.ListClients)
				r.Post("/", d.Clients.CreateClient)
				r.Get("/{id}", d.Clients.GetClient)
				r.Put("/{id}", d.Clients.UpdateClient)
				r.Patch("/{id}/loan-status", d.Clients.UpdateLoanStatus)
				r.With(d.Guard.RequireRole(auth.RoleAdmin)).Delete("/{id}", d.Clients.DeleteClient)
			})

			r.Route("/enquiries", func(r chi.Router) {
				r.Get("/", d.Enquiry.ListEnquiries)
				r.Post("/", d.Enquiry.CreateEnquiry)
				r.Put("/{id}", d.Enquiry.UpdateEnquiry)
				r.With(d.Guard.RequireRole(auth.RoleAdmin)).Delete("/{id}", d.Enquiry.DeleteEnquiry)
			})

			r.Post("/media/upload", d.Media.Upload)

			r.Route("/admin", func(r chi.Router) {
				r.Use(d.Guard.RequireRole(auth.RoleAdmin))

				r.Get("/pending-users", d.Auth.PendingUsers)
				r.Post("/approve-user", d.Auth.ApproveUser)
				r.Post("/unlock-account", d.Auth.UnlockAccount)
			})
		})
	})

	r.Get("/internal/maintenance/cleanup", d.Cleanup.Handle)
	r.Post("/internal/maintenance/cleanup", d.Cleanup.Handle)

	return r
}

// securityHeaders applies the browser-facing hardening headers to every
// response. HSTS only makes sense behind TLS, so it is production-only.
func securityHeaders(production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows only the configured origins. Credentials are enabled,
// so the wildcard origin is never used; an empty allow-list means no
// cross-origin browser access at all. The deny-all func matters: go-chi/cors
// reads an empty AllowedOrigins as allow-everything.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.Handler(cors.Options{
			AllowOriginFunc:  func(r *http.Request, origin string) bool { return false },
			AllowCredentials: true,
		})
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
