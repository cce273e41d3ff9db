// Package handler содержит HTTP-обработчики API сервиса пожертвований.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/fees"
	"github.com/mmeshcher/masjid-donations/internal/middleware"
	"github.com/mmeshcher/masjid-donations/internal/model"
	"github.com/mmeshcher/masjid-donations/internal/prayertimes"
	"github.com/mmeshcher/masjid-donations/internal/repository"
	"github.com/mmeshcher/masjid-donations/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreatePaymentIntent(ctx context.Context, req model.DonationRequest) (*model.PaymentIntent, error)
	ResolvePaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error)
	AwaitPaymentStatus(ctx context.Context, reference string) (*model.PaymentStatusResult, error)
	HandleGatewayEvent(ctx context.Context, ev model.GatewayEvent) error
	FeeBreakdown(amount string, coverFees bool) (fees.Breakdown, error)
	ListDonationTypes(ctx context.Context) ([]model.DonationType, error)
	ListIftarDates(ctx context.Context, from, to time.Time) ([]model.IftarDate, error)
	GenerateIftarDates(ctx context.Context, start, end time.Time) (int64, error)
	GetPrayerTimes(ctx context.Context, date time.Time) (*model.PrayerTimes, error)
	ListDonations(ctx context.Context, f model.DonationFilter) ([]model.Donation, error)
	GetDonation(ctx context.Context, id uuid.UUID) (*model.Donation, error)
	UpdateDonation(ctx context.Context, id uuid.UUID, upd model.DonationUpdate) (*model.Donation, error)
}

// EventParser проверяет подпись вебхука платёжного шлюза и разбирает событие.
type EventParser interface {
	ParseEvent(payload []byte, signature string) (*model.GatewayEvent, error)
}

// Handler реализует HTTP-обработчики API сервиса пожертвований.
type Handler struct {
	service        Service
	events         EventParser
	logger         *zap.Logger
	adminAuth      *middleware.AdminAuth
	allowedOrigins []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, events EventParser, logger *zap.Logger, admin *middleware.AdminAuth, allowedOrigins []string) *Handler {
	return &Handler{
		service:        s,
		events:         events,
		logger:         logger,
		adminAuth:      admin,
		allowedOrigins: allowedOrigins,
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status)})
}

// writeServiceError сопоставляет ошибку сервиса с HTTP-статусом.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verr *service.ValidationError
	var rl *prayertimes.RateLimitError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  http.StatusText(http.StatusBadRequest),
			Field:  verr.Field,
			Reason: verr.Reason,
		})
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest)
	case errors.Is(err, service.ErrPaymentGateway):
		h.logger.Warn(op+" error", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: "payment provider unavailable, please try again later",
		})
	case errors.Is(err, repository.ErrDonationNotFound):
		writeError(w, http.StatusNotFound)
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		}
		writeError(w, http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrPrayerTimesUnavailable):
		writeError(w, http.StatusServiceUnavailable)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError)
	}
}

func toDollars(cents int64) float64 {
	return float64(cents) / 100
}

func parseDay(raw string) (time.Time, error) {
	return time.Parse(time.DateOnly, raw)
}
