package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/e2dconnect/e2d/internal/config"
	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/logging"
	"github.com/e2dconnect/e2d/internal/server"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	created, err := store.EnsureAdmin(ctx, db, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		logger.Error("failed to create bootstrap admin", "error", err)
		os.Exit(1)
	}
	if created {
		logger.Info("bootstrap admin created", "email", cfg.AdminEmail)
	}

	srv := server.New(db, cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Hourly housekeeping
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(ctx); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
				if n, err := srv.MarkOverdueLoans(ctx, time.Now()); err != nil {
					logger.Error("mark overdue loans", "error", err)
				} else if n > 0 {
					logger.Info("loans marked overdue", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv.BackupManager().Start(ctx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
	}

	go func() {
		logger.Info("E2D Connect starting", "addr", httpServer.Addr, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.BackupManager().Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("flush traces", "error", err)
	}
}
