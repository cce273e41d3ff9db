package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/gateway"
	"github.com/mmeshcher/masjid-donations/internal/model"
	"github.com/mmeshcher/masjid-donations/internal/repository"
	"github.com/mmeshcher/masjid-donations/internal/validation"
)

const (
	cancelTimeout = 10 * time.Second

	maxExtraMetadata    = 20
	maxMetadataKeyLen   = 40
	maxMetadataValueLen = 500
)

var errStillProcessing = errors.New("payment still processing")

// CreatePaymentIntent проверяет форму, создаёт платёжное намерение в шлюзе и сохраняет
// запись в статусе pending. Клиент получает секрет для встроенного виджета оплаты.
func (s *Service) CreatePaymentIntent(ctx context.Context, req model.DonationRequest) (*model.PaymentIntent, error) {
	d, err := s.prepareDonation(ctx, req)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentParams{
		Amount:         d.TotalAmount,
		Currency:       d.Currency,
		ReceiptEmail:   d.DonorEmail,
		Description:    "Donation: " + d.DonationTypeName,
		Metadata:       intentMetadata(d, req.Metadata),
		IdempotencyKey: d.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPaymentGateway, err)
	}

	d.PaymentReference = intent.Reference

	if err := s.repo.CreateDonation(ctx, d); err != nil {
		// Намерение без записи не должно остаться в шлюзе.
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()
		if cancelErr := s.gateway.CancelIntent(cancelCtx, intent.Reference); cancelErr != nil {
			s.logger.Error("cancel orphaned payment intent", zap.Error(cancelErr), zap.String("reference", intent.Reference))
		}
		return nil, fmt.Errorf("save donation: %w", err)
	}

	s.logger.Info("payment intent created",
		zap.String("donationID", d.ID.String()),
		zap.String("reference", d.PaymentReference),
		zap.Int64("total", d.TotalAmount),
	)

	return &model.PaymentIntent{
		DonationID:   d.ID,
		Reference:    intent.Reference,
		ClientSecret: intent.ClientSecret,
		Amount:       d.Amount,
		Fees:         d.TotalAmount - d.Amount,
		Total:        d.TotalAmount,
		Currency:     d.Currency,
	}, nil
}

func (s *Service) prepareDonation(ctx context.Context, req model.DonationRequest) (*model.Donation, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	donor := validation.Donor{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Anonymous: req.Anonymous,
		Notes:     req.Notes,
	}
	if err := validation.ValidateDonor(donor); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return nil, &ValidationError{Field: fe.Field, Reason: fe.Reason}
		}
		return nil, err
	}

	if req.DonationTypeID <= 0 {
		return nil, &ValidationError{Field: "donationType", Reason: "is required"}
	}
	dt, err := s.repo.GetDonationType(ctx, req.DonationTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrDonationTypeNotFound) {
			return nil, &ValidationError{Field: "donationType", Reason: "is unknown"}
		}
		return nil, fmt.Errorf("get donation type: %w", err)
	}
	if !dt.Active {
		return nil, &ValidationError{Field: "donationType", Reason: "is not accepting donations"}
	}

	if err := checkMetadata(req.Metadata); err != nil {
		return nil, err
	}

	sponsorshipDate, err := s.checkSponsorshipDate(ctx, req.SponsorshipDate)
	if err != nil {
		return nil, err
	}

	total := s.fees.Total(amount, req.CoverFees)
	if total < amount {
		return nil, &ValidationError{Field: "amount", Reason: "cannot be charged"}
	}

	name := strings.TrimSpace(req.Name)
	if req.Anonymous {
		name = ""
	}

	return &model.Donation{
		ID:               uuid.New(),
		DonationTypeID:   dt.ID,
		DonationTypeName: dt.Name,
		Amount:           amount,
		TotalAmount:      total,
		Currency:         s.currency,
		DonorName:        name,
		DonorEmail:       strings.TrimSpace(req.Email),
		DonorPhone:       strings.TrimSpace(req.Phone),
		Anonymous:        req.Anonymous,
		CoverFees:        req.CoverFees,
		Status:           model.DonationStatusPending,
		Notes:            strings.TrimSpace(req.Notes),
		SponsorshipDate:  sponsorshipDate,
	}, nil
}

func (s *Service) checkSponsorshipDate(ctx context.Context, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, &ValidationError{Field: "sponsorshipDate", Reason: "must be a date in YYYY-MM-DD format"}
	}

	date, err := s.repo.GetIftarDate(ctx, day)
	if err != nil {
		if errors.Is(err, repository.ErrIftarDateNotFound) {
			return nil, &ValidationError{Field: "sponsorshipDate", Reason: "is not on the iftar calendar"}
		}
		return nil, fmt.Errorf("get iftar date: %w", err)
	}
	if !date.Available {
		return nil, &ValidationError{Field: "sponsorshipDate", Reason: "is already sponsored"}
	}

	return &day, nil
}

func checkMetadata(md map[string]string) error {
	if len(md) > maxExtraMetadata {
		return &ValidationError{Field: "metadata", Reason: fmt.Sprintf("must have at most %d keys", maxExtraMetadata)}
	}
	for k, v := range md {
		if k == "" || len(k) > maxMetadataKeyLen || len(v) > maxMetadataValueLen {
			return &ValidationError{Field: "metadata", Reason: fmt.Sprintf("key %q is invalid or too long", k)}
		}
	}
	return nil
}

func parseAmount(raw string) (int64, error) {
	cents, err := validation.ParseAmount(raw)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	return cents, nil
}

// intentMetadata объединяет метаданные клиента со служебными ключами. Служебные ключи имеют приоритет.
func intentMetadata(d *model.Donation, extra map[string]string) map[string]string {
	md := make(map[string]string, len(extra)+9)
	for k, v := range extra {
		md[k] = v
	}

	for k, v := range map[string]string{
		"donation_id":      d.ID.String(),
		"donation_type":    d.DonationTypeName,
		"donation_type_id": strconv.FormatInt(d.DonationTypeID, 10),
		"amount":           formatCents(d.Amount),
		"total":            formatCents(d.TotalAmount),
		"cover_fees":       strconv.FormatBool(d.CoverFees),
		"anonymous":        strconv.FormatBool(d.Anonymous),
	} {
		md[k] = v
	}

	delete(md, "donor_name")
	if !d.Anonymous && d.DonorName != "" {
		md["donor_name"] = d.DonorName
	}
	if d.SponsorshipDate != nil {
		md["sponsorship_date"] = d.SponsorshipDate.Format(time.DateOnly)
	}
	return md
}

func formatCents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}

// ResolvePaymentStatus запрашивает статус платежа у шлюза и применяет его к записи о пожертвовании.
// Безопасен для повторных вызовов: письма отправляются только при фактическом переходе в completed.
func (s *Service) ResolvePaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, &ValidationError{Field: "reference", Reason: "is required"}
	}

	res, err := s.gateway.GetPaymentStatus(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusLookup, err)
	}
	if res.Reference == "" {
		res.Reference = reference
	}

	if err := s.applyPaymentStatus(ctx, res); err != nil {
		// Запись останется pending и будет сверена повторно.
		s.logger.Error("apply payment status", zap.Error(err), zap.String("reference", reference))
	}

	return res, nil
}

// AwaitPaymentStatus повторяет запрос статуса с экспоненциальной задержкой, пока платёж в обработке.
// Если попытки исчерпаны, возвращает статус processing, а не ошибку.
func (s *Service) AwaitPaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error) {
	b := retry.NewExponential(s.awaitBase)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(s.awaitRetries, b)

	var last *model.PaymentStatusResult
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		res, err := s.ResolvePaymentStatus(ctx, reference)
		if err != nil {
			if errors.Is(err, ErrStatusLookup) {
				return retry.RetryableError(err)
			}
			return err
		}

		last = res
		if res.Status == model.PaymentStatusProcessing {
			return retry.RetryableError(errStillProcessing)
		}
		return nil
	})

	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, ErrValidation):
		return nil, err
	case last != nil:
		return last, nil
	default:
		s.logger.Warn("payment status unavailable", zap.Error(err), zap.String("reference", reference))
		return &model.PaymentStatusResult{
			Reference: reference,
			Status:    model.PaymentStatusProcessing,
		}, nil
	}
}

// HandleGatewayEvent применяет уведомление платёжного шлюза.
func (s *Service) HandleGatewayEvent(ctx context.Context, ev model.GatewayEvent) error {
	switch ev.Kind {
	case model.GatewayEventSucceeded:
		return s.completeDonation(ctx, ev.Reference)
	case model.GatewayEventDeclined:
		s.logDecline(ev.Reference)
		return nil
	case model.GatewayEventFailed:
		return s.transition(ctx, ev.Reference, model.DonationStatusPending, model.DonationStatusFailed)
	case model.GatewayEventRefunded:
		// Статус refunded выставляет только администратор.
		s.logger.Warn("refund reported by payment gateway, status left for admin review",
			zap.String("eventID", ev.ID),
			zap.String("reference", ev.Reference),
		)
		return nil
	default:
		return fmt.Errorf("unknown gateway event kind %q", ev.Kind)
	}
}

// applyPaymentStatus переносит наблюдаемый статус платежа на запись.
// Отклонённая, но не финальная попытка запись не меняет.
func (s *Service) applyPaymentStatus(ctx context.Context, res *model.PaymentStatusResult) error {
	switch res.Status {
	case model.PaymentStatusSucceeded:
		return s.completeDonation(ctx, res.Reference)
	case model.PaymentStatusFailed:
		if !res.Final {
			s.logDecline(res.Reference)
			return nil
		}
		return s.transition(ctx, res.Reference, model.DonationStatusPending, model.DonationStatusFailed)
	case model.PaymentStatusProcessing:
		return nil
	default:
		return fmt.Errorf("unknown payment status %q", res.Status)
	}
}

func (s *Service) logDecline(reference string) {
	s.logger.Info("payment attempt declined, donation stays pending for retry", zap.String("reference", reference))
}

func (s *Service) transition(ctx context.Context, reference string, from, to model.DonationStatus) error {
	_, changed, err := s.repo.TransitionStatus(ctx, reference, from, to)
	if err != nil {
		return fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	if changed {
		s.logger.Info("donation status changed",
			zap.String("reference", reference),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	return nil
}

// completeDonation переводит запись в completed. Письма отправляет только тот вызов,
// который выполнил условное обновление.
func (s *Service) completeDonation(ctx context.Context, reference string) error {
	d, changed, err := s.repo.TransitionStatus(ctx, reference, model.DonationStatusPending, model.DonationStatusCompleted)
	if err != nil {
		return fmt.Errorf("complete donation: %w", err)
	}
	if !changed {
		return s.checkUnchangedSuccess(ctx, reference)
	}

	s.logger.Info("donation completed",
		zap.String("donationID", d.ID.String()),
		zap.String("reference", reference),
		zap.Int64("total", d.TotalAmount),
	)
	if d.SponsorshipConflict {
		s.logger.Warn("iftar date already sponsored by another donor",
			zap.String("donationID", d.ID.String()),
			zap.Time("day", *d.SponsorshipDate),
		)
	}

	s.dispatchConfirmation(ctx, *d)
	return nil
}

// checkUnchangedSuccess разбирает успешный платёж, который не перевёл запись в completed.
// Повтор по уже завершённому пожертвованию штатен, остальные случаи требуют внимания администратора.
func (s *Service) checkUnchangedSuccess(ctx context.Context, reference string) error {
	d, err := s.repo.GetDonationByReference(ctx, reference)
	if errors.Is(err, repository.ErrDonationNotFound) {
		s.logger.Warn("payment succeeded for unknown reference", zap.String("reference", reference))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load donation: %w", err)
	}

	if d.Status != model.DonationStatusCompleted && d.Status.Terminal() {
		s.logger.Warn("payment succeeded for donation in terminal status",
			zap.String("donationID", d.ID.String()),
			zap.String("reference", reference),
			zap.String("status", string(d.Status)),
		)
	}
	return nil
}

func (s *Service) dispatchConfirmation(ctx context.Context, d model.Donation) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.DonationCompleted(context.WithoutCancel(ctx), d); err != nil {
		s.logger.Warn("donation confirmation not delivered",
			zap.Error(fmt.Errorf("%w: %w", ErrNotification, err)),
			zap.String("donationID", d.ID.String()),
		)
	}
}
