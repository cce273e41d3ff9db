package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/masjid-donations/internal/gateway"
	"github.com/mmeshcher/masjid-donations/internal/model"
	"github.com/mmeshcher/masjid-donations/internal/service"
)

const (
	maxRequestBody = 64 << 10
	maxWebhookBody = 256 << 10

	defaultCalendarDays = 30
)

// amountValue принимает сумму и как JSON-строку, и как JSON-число.
type amountValue string

func (a *amountValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = amountValue(n.String())
	return nil
}

type paymentIntentRequest struct {
	DonationType    int64             `json:"donationType"`
	Amount          amountValue       `json:"amount"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone"`
	Anonymous       bool              `json:"anonymous"`
	CoverFees       bool              `json:"coverFees"`
	Notes           string            `json:"notes"`
	SponsorshipDate string            `json:"sponsorshipDate"`
	Metadata        map[string]string `json:"metadata"`
}

type paymentIntentResponse struct {
	DonationID   string  `json:"donationId"`
	Reference    string  `json:"reference"`
	ClientSecret string  `json:"clientSecret"`
	Amount       float64 `json:"amount"`
	Fees         float64 `json:"fees"`
	Total        float64 `json:"total"`
	Currency     string  `json:"currency"`
}

// CreatePaymentIntent создаёт платёжное намерение для формы пожертвования.
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  http.StatusText(http.StatusBadRequest),
			Reason: "malformed JSON body",
		})
		return
	}

	intent, err := h.service.CreatePaymentIntent(r.Context(), model.DonationRequest{
		DonationTypeID:  req.DonationType,
		Amount:          string(req.Amount),
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Anonymous:       req.Anonymous,
		CoverFees:       req.CoverFees,
		Notes:           req.Notes,
		SponsorshipDate: req.SponsorshipDate,
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.writeServiceError(w, "create payment intent", err)
		return
	}

	writeJSON(w, http.StatusOK, paymentIntentResponse{
		DonationID:   intent.DonationID.String(),
		Reference:    intent.Reference,
		ClientSecret: intent.ClientSecret,
		Amount:       toDollars(intent.Amount),
		Fees:         toDollars(intent.Fees),
		Total:        toDollars(intent.Total),
		Currency:     intent.Currency,
	})
}

type paymentStatusResponse struct {
	Reference      string               `json:"reference"`
	Status         string               `json:"status"`
	AmountReceived float64              `json:"amountReceived"`
	Currency       string               `json:"currency,omitempty"`
	PaymentMethod  *model.PaymentMethod `json:"paymentMethod,omitempty"`
	Metadata       map[string]string    `json:"metadata,omitempty"`
}

// GetPaymentStatus возвращает статус платежа для страницы подтверждения.
// Ошибка запроса к шлюзу отображается как processing, чтобы клиент повторил запрос.
func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  http.StatusText(http.StatusBadRequest),
			Field:  "reference",
			Reason: "is required",
		})
		return
	}

	resolve := h.service.ResolvePaymentStatus
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		resolve = h.service.AwaitPaymentStatus
	}

	res, err := resolve(r.Context(), reference)
	if err != nil {
		if !errors.Is(err, service.ErrStatusLookup) {
			h.writeServiceError(w, "payment status", err)
			return
		}
		h.logger.Warn("payment status lookup error", zap.Error(err), zap.String("reference", reference))
		res = &model.PaymentStatusResult{Reference: reference, Status: model.PaymentStatusProcessing}
	}

	writeJSON(w, http.StatusOK, paymentStatusResponse{
		Reference:      res.Reference,
		Status:         string(res.Status),
		AmountReceived: toDollars(res.AmountReceived),
		Currency:       res.Currency,
		PaymentMethod:  res.PaymentMethod,
		Metadata:       res.Metadata,
	})
}

// StripeWebhook принимает уведомления платёжного шлюза.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge)
		return
	}

	ev, err := h.events.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			writeError(w, http.StatusBadRequest)
			return
		}
		h.logger.Error("parse webhook error", zap.Error(err))
		writeError(w, http.StatusBadRequest)
		return
	}

	if ev == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.HandleGatewayEvent(r.Context(), *ev); err != nil {
		h.logger.Error("handle webhook error", zap.Error(err), zap.String("eventID", ev.ID), zap.String("reference", ev.Reference))
		writeError(w, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetFees возвращает разбивку суммы для предварительного просмотра в форме.
func (h *Handler) GetFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cover, _ := strconv.ParseBool(q.Get("coverFees"))

	b, err := h.service.FeeBreakdown(q.Get("amount"), cover)
	if err != nil {
		h.writeServiceError(w, "fee breakdown", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"amount": toDollars(b.Amount),
		"fees":   toDollars(b.Fees),
		"total":  toDollars(b.Total),
	})
}

// GetDonationTypes возвращает активные категории пожертвований.
func (h *Handler) GetDonationTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListDonationTypes(r.Context())
	if err != nil {
		h.writeServiceError(w, "list donation types", err)
		return
	}

	if types == nil {
		types = []model.DonationType{}
	}
	writeJSON(w, http.StatusOK, types)
}

type iftarDateResponse struct {
	Date        string `json:"date"`
	Available   bool   `json:"available"`
	SponsorName string `json:"sponsorName,omitempty"`
}

// GetIftarDates возвращает календарь спонсорства ифтаров. По умолчанию 30 дней начиная с сегодняшнего.
func (h *Handler) GetIftarDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := time.Now().UTC()
	if raw := q.Get("from"); raw != "" {
		d, err := parseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Field: "from", Reason: "must be YYYY-MM-DD"})
			return
		}
		from = d
	}

	to := from.AddDate(0, 0, defaultCalendarDays-1)
	if raw := q.Get("to"); raw != "" {
		d, err := parseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Field: "to", Reason: "must be YYYY-MM-DD"})
			return
		}
		to = d
	}

	dates, err := h.service.ListIftarDates(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, "list iftar dates", err)
		return
	}

	resp := make([]iftarDateResponse, 0, len(dates))
	for _, d := range dates {
		resp = append(resp, iftarDateResponse{
			Date:        d.Day.Format(time.DateOnly),
			Available:   d.Available,
			SponsorName: d.SponsorName,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPrayerTimes возвращает расписание намазов на дату (по умолчанию на сегодня).
func (h *Handler) GetPrayerTimes(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := parseDay(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: http.StatusText(http.StatusBadRequest), Field: "date", Reason: "must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	pt, err := h.service.GetPrayerTimes(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, "prayer times", err)
		return
	}

	writeJSON(w, http.StatusOK, pt)
}
