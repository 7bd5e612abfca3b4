package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/perivi8/Business-Guru-Backend/internal/app"
	"github.com/perivi8/Business-Guru-Backend/internal/observability"
)

func main() {
	ctx := context.Background()

	runtime, err := app.Build(ctx, app.Options{
		LoadDotEnv:    true,
		RunMigrations: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		observability.FlushSentry()
		os.Exit(1)
	}
	defer runtime.Close()

	server := &http.Server{
		Addr:              ":" + runtime.Config.Port,
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	runtime.Logger.Info("server_start", map[string]any{"addr": server.Addr, "env": runtime.Config.AppEnv})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		runtime.Logger.Error("server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
