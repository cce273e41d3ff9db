// Package main запускает HTTP-сервер сервиса пожертвований мечети.
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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/masjid-donations/internal/app"
	"github.com/mmeshcher/masjid-donations/internal/config"
	"github.com/mmeshcher/masjid-donations/internal/handler"
	"github.com/mmeshcher/masjid-donations/internal/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		sugar.Warnw("failed to load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		sugar.Fatalw("initialization error", "error", err.Error())
	}
	defer a.Close()

	adminAuth := middleware.NewAdminAuth(cfg.AdminToken)
	if !adminAuth.Enabled() {
		sugar.Warn("ADMIN_TOKEN is not set, admin routes are disabled")
	}

	h := handler.NewHandler(a.Service, a.Stripe, logger, adminAuth, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting reconciliation", "schedule", cfg.ReconcileSchedule, "grace", cfg.PendingGrace)
		return a.Service.StartReconciliation(ctx, cfg.ReconcileSchedule)
	})

	g.Go(func() error {
		sugar.Infow("donations API listening", "addr", cfg.RunAddress, "currency", cfg.Currency)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.RunAddress, err)
		}
		return nil
	})

	// Вебхуки, пришедшие во время остановки, Stripe доставит повторно.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("stopping donations API")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("donations API stopped with error", "error", err)
	}
	sugar.Info("donations API stopped")
}
