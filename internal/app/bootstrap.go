package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/perivi8/Business-Guru-Backend/internal/api"
	"github.com/perivi8/Business-Guru-Backend/internal/auth"
	"github.com/perivi8/Business-Guru-Backend/internal/client"
	"github.com/perivi8/Business-Guru-Backend/internal/config"
	"github.com/perivi8/Business-Guru-Backend/internal/db"
	"github.com/perivi8/Business-Guru-Backend/internal/enquiry"
	"github.com/perivi8/Business-Guru-Backend/internal/maintenance"
	"github.com/perivi8/Business-Guru-Backend/internal/media"
	"github.com/perivi8/Business-Guru-Backend/internal/notify"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *observability.Logger
	Close   func() error
}

// Build assembles the whole application from the environment. Any missing or
// unusable required configuration fails here, before the first request.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.AppEnv)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)
	database.SetConnMaxIdleTime(10 * time.Minute)

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	security := observability.NewSecurityLogger(logger)
	lockout := auth.NewLockoutTracker(cfg.LockoutMaxAttempts, cfg.LockoutDuration, cfg.LockoutAttemptWindow)
	limiter := auth.NewRouteLimiter(auth.PolicyTable{
		auth.RouteLogin:          {Requests: cfg.LoginRate.Requests, Window: cfg.LoginRate.Window},
		auth.RouteRegister:       {Requests: cfg.RegisterRate.Requests, Window: cfg.RegisterRate.Window},
		auth.RouteForgotPassword: {Requests: cfg.ForgotPasswordRate.Requests, Window: cfg.ForgotPasswordRate.Window},
		auth.RouteAPI:            {Requests: cfg.APIRate.Requests, Window: cfg.APIRate.Window},
		auth.RouteGlobal:         {Requests: cfg.GlobalRate.Requests, Window: cfg.GlobalRate.Window},
	})
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	var sender notify.Sender = notify.NopSender{}
	if cfg.BrevoAPIKey != "" && cfg.NotifyFrom != "" {
		brevo, err := notify.NewBrevo(cfg.BrevoAPIKey, cfg.NotifyFrom)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init brevo: %w", err)
		}
		sender = brevo
	}
	dispatcher := notify.NewDispatcher(sender, logger)

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, lockout, tokens, security, dispatcher)
	authHandler := auth.NewHandler(authService)
	guard := auth.NewGuard(tokens, limiter, security)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authRepo.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	var uploader media.Uploader
	if cfg.CloudinaryURL != "" {
		cloudinaryClient, err := media.NewCloudinary(cfg.CloudinaryURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init cloudinary: %w", err)
		}
		uploader = cloudinaryClient
	}

	clientRepo := client.NewRepository(database)
	clientHandler := client.NewHandler(clientRepo, dispatcher)
	enquiryRepo := enquiry.NewRepository(database)
	enquiryHandler := enquiry.NewHandler(enquiryRepo)
	mediaHandler := media.NewUploadHandler(uploader)

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		lockout,
		limiter,
		logger,
		cfg.CronSecret,
		envDaysOrDefault("RESET_TOKEN_RETENTION_DAYS", 14),
		envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	)

	handler := api.NewRouter(api.Deps{
		Config:  cfg,
		Logger:  logger,
		DB:      database,
		Guard:   guard,
		Auth:    authHandler,
		Clients: clientHandler,
		Enquiry: enquiryHandler,
		Media:   mediaHandler,
		Cleanup: cleanupHandler,
	})

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close: func() error {
			dispatcher.Close()
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
