// Package app собирает зависимости сервиса пожертвований из конфигурации.
package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/config"
	"github.com/mmeshcher/masjid-donations/internal/fees"
	"github.com/mmeshcher/masjid-donations/internal/gateway"
	"github.com/mmeshcher/masjid-donations/internal/notify"
	"github.com/mmeshcher/masjid-donations/internal/prayertimes"
	"github.com/mmeshcher/masjid-donations/internal/repository"
	"github.com/mmeshcher/masjid-donations/internal/service"
)

// App содержит собранный сервис и адаптер платёжного шлюза.
type App struct {
	Service *service.Service
	Stripe  *gateway.Stripe
}

// New подключается к базе данных и собирает сервис. Почта и расписание намазов
// подключаются только если заданы их настройки.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.DatabaseURI == "" {
		return nil, errors.New("database URI is not set")
	}
	if cfg.StripeSecretKey == "" {
		return nil, errors.New("stripe secret key is not set")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("database initialization: %w", err)
	}

	stripeGW := gateway.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	var notifier service.Notifier
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		notifier = notify.NewMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailSender, cfg.AdminEmail)
	} else {
		logger.Warn("mailgun is not configured, donation confirmations are disabled")
	}

	var prayer service.PrayerTimesSource
	if cfg.PrayerTimesAddress != "" {
		prayer = prayertimes.NewClient(cfg.PrayerTimesAddress, cfg.PrayerCity, cfg.PrayerCountry, cfg.PrayerMethod)
	}

	svc := service.NewService(repo, stripeGW, notifier, prayer, logger, service.Options{
		Currency:     cfg.Currency,
		Fees:         fees.New(cfg.FeeFixedCents(), cfg.FeePercent),
		PendingGrace: cfg.PendingGrace,
	})

	return &App{Service: svc, Stripe: stripeGW}, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() error {
	return a.Service.Close()
}
