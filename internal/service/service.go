// Package service реализует бизнес-логику сервиса пожертвований.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/fees"
	"github.com/mmeshcher/masjid-donations/internal/gateway"
	"github.com/mmeshcher/masjid-donations/internal/model"
)

var (
	// ErrValidation возвращается, если данные жертвователя некорректны. Внешние вызовы при этом не выполняются.
	ErrValidation = errors.New("validation failed")
	// ErrPaymentGateway возвращается, если платёжный шлюз недоступен или отклонил запрос.
	ErrPaymentGateway = errors.New("payment gateway error")
	// ErrStatusLookup возвращается, если не удалось получить статус платежа. Запись при этом не меняется.
	ErrStatusLookup = errors.New("payment status lookup failed")
	// ErrNotification описывает ошибку отправки писем. Только логируется.
	ErrNotification = errors.New("notification failed")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	ListDonationTypes(ctx context.Context, activeOnly bool) ([]model.DonationType, error)
	GetDonationType(ctx context.Context, id int64) (*model.DonationType, error)
	CreateDonation(ctx context.Context, d *model.Donation) error
	GetDonation(ctx context.Context, id uuid.UUID) (*model.Donation, error)
	GetDonationByReference(ctx context.Context, reference string) (*model.Donation, error)
	ListDonations(ctx context.Context, f model.DonationFilter) ([]model.Donation, error)
	ListPendingDonations(ctx context.Context, createdBefore time.Time, limit int) ([]model.Donation, error)
	TransitionStatus(ctx context.Context, reference string, from, to model.DonationStatus) (*model.Donation, bool, error)
	UpdateDonation(ctx context.Context, id uuid.UUID, upd model.DonationUpdate) (*model.Donation, error)
	ListIftarDates(ctx context.Context, from, to time.Time) ([]model.IftarDate, error)
	GetIftarDate(ctx context.Context, day time.Time) (*model.IftarDate, error)
	CreateIftarDates(ctx context.Context, start, end time.Time) (int64, error)
}

// Gateway описывает платёжный шлюз.
type Gateway interface {
	CreateIntent(ctx context.Context, p gateway.IntentParams) (*gateway.Intent, error)
	CancelIntent(ctx context.Context, reference string) error
	GetPaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error)
}

// Notifier отправляет письма о завершённом пожертвовании.
type Notifier interface {
	DonationCompleted(ctx context.Context, d model.Donation) error
}

// PrayerTimesSource предоставляет расписание намазов.
type PrayerTimesSource interface {
	GetTimings(ctx context.Context, date time.Time) (*model.PrayerTimes, error)
}

// Options содержит настраиваемые параметры сервиса.
type Options struct {
	Currency     string
	Fees         fees.Calculator
	PendingGrace time.Duration
}

// Service содержит бизнес-логику сервиса пожертвований.
type Service struct {
	repo        Repository
	gateway     Gateway
	notifier    Notifier
	prayerTimes PrayerTimesSource
	logger      *zap.Logger

	currency     string
	fees         fees.Calculator
	pendingGrace time.Duration

	awaitBase    time.Duration
	awaitRetries uint64
	now          func() time.Time
}

// NewService создаёт новый сервис. notifier и prayerTimes могут быть nil.
func NewService(repo Repository, gw Gateway, notifier Notifier, prayerTimes PrayerTimesSource, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}

	return &Service{
		repo:         repo,
		gateway:      gw,
		notifier:     notifier,
		prayerTimes:  prayerTimes,
		logger:       logger,
		currency:     opts.Currency,
		fees:         opts.Fees,
		pendingGrace: opts.PendingGrace,
		awaitBase:    500 * time.Millisecond,
		awaitRetries: 4,
		now:          time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Currency возвращает валюту пожертвований.
func (s *Service) Currency() string {
	return s.currency
}

// FeeBreakdown вычисляет комиссию для суммы из формы.
func (s *Service) FeeBreakdown(amount string, coverFees bool) (fees.Breakdown, error) {
	cents, err := parseAmount(amount)
	if err != nil {
		return fees.Breakdown{}, err
	}
	return s.fees.Breakdown(cents, coverFees), nil
}

// ListDonationTypes возвращает активные категории пожертвований.
func (s *Service) ListDonationTypes(ctx context.Context) ([]model.DonationType, error) {
	return s.repo.ListDonationTypes(ctx, true)
}

// GetDonation возвращает пожертвование по идентификатору.
func (s *Service) GetDonation(ctx context.Context, id uuid.UUID) (*model.Donation, error) {
	return s.repo.GetDonation(ctx, id)
}

// ListDonations возвращает пожертвования по фильтру администратора.
func (s *Service) ListDonations(ctx context.Context, f model.DonationFilter) ([]model.Donation, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, &ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}
	return s.repo.ListDonations(ctx, f)
}

// UpdateDonation применяет ручную правку администратора. Письма при этом не отправляются.
func (s *Service) UpdateDonation(ctx context.Context, id uuid.UUID, upd model.DonationUpdate) (*model.Donation, error) {
	d, err := s.repo.UpdateDonation(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	if upd.Status != nil {
		s.logger.Info("donation status overridden",
			zap.String("donationID", id.String()),
			zap.String("status", string(*upd.Status)),
		)
	}

	return d, nil
}
