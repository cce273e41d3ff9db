// Package config содержит логику чтения конфигурации сервиса пожертвований.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress        = "localhost:8080"
	defaultCurrency          = "usd"
	defaultReconcileSchedule = "@every 1m"
	defaultPendingGrace      = 2 * time.Minute
)

// Config содержит параметры конфигурации сервиса пожертвований.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency            string `env:"CURRENCY"`

	// Комиссия процессора: фиксированная часть в валюте и доля от суммы.
	FeeFixed   float64 `env:"FEE_FIXED" envDefault:"0.30"`
	FeePercent float64 `env:"FEE_PERCENT" envDefault:"0.029"`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailSender    string `env:"MAIL_SENDER"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminToken    string `env:"ADMIN_TOKEN"`

	PrayerTimesAddress string `env:"PRAYER_TIMES_ADDRESS"`
	PrayerCity         string `env:"PRAYER_CITY"`
	PrayerCountry      string `env:"PRAYER_COUNTRY"`
	PrayerMethod       int    `env:"PRAYER_METHOD" envDefault:"2"`

	ReconcileSchedule string        `env:"RECONCILE_SCHEDULE"`
	PendingGrace      time.Duration `env:"PENDING_GRACE"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// FeeFixedCents возвращает фиксированную часть комиссии в центах.
func (c *Config) FeeFixedCents() int64 {
	return int64(c.FeeFixed*100 + 0.5)
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPrayerAddress := cfg.PrayerTimesAddress

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PrayerTimesAddress, "p", "", "prayer times API address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPrayerAddress != "" {
		cfg.PrayerTimesAddress = envPrayerAddress
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv считывает конфигурацию только из переменных окружения.
// Используется утилитой командной строки, которая разбирает флаги сама.
func FromEnv() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.ReconcileSchedule == "" {
		cfg.ReconcileSchedule = defaultReconcileSchedule
	}
	if cfg.PendingGrace <= 0 {
		cfg.PendingGrace = defaultPendingGrace
	}
}

func (c *Config) validate() error {
	if c.FeePercent < 0 || c.FeePercent >= 1 {
		return errors.New("fee percent must be in [0, 1)")
	}
	if c.FeeFixed < 0 {
		return errors.New("fixed fee must not be negative")
	}
	return nil
}
