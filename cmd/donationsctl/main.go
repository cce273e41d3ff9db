// Package main содержит консольную утилиту оператора сервиса пожертвований.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/app"
	"github.com/mmeshcher/masjid-donations/internal/config"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "donationsctl",
		Short:         "Operator tool for the masjid donations service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(iftarCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp читает конфигурацию из окружения и собирает сервис.
func openApp() (*app.App, *zap.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return a, logger, nil
}
