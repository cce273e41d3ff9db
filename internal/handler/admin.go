package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/masjid-donations/internal/model"
)

type donationResponse struct {
	ID               string  `json:"id"`
	DonationTypeID   int64   `json:"donationTypeId"`
	DonationType     string  `json:"donationType"`
	Amount           float64 `json:"amount"`
	TotalAmount      float64 `json:"totalAmount"`
	Currency         string  `json:"currency"`
	DonorName        string  `json:"donorName"`
	DonorEmail       string  `json:"donorEmail"`
	DonorPhone       string  `json:"donorPhone,omitempty"`
	Anonymous        bool    `json:"anonymous"`
	CoverFees        bool    `json:"coverFees"`
	Status           string  `json:"status"`
	PaymentReference string  `json:"paymentReference"`
	Notes            string  `json:"notes,omitempty"`
	SponsorshipDate  string  `json:"sponsorshipDate,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
}

func newDonationResponse(d model.Donation) donationResponse {
	resp := donationResponse{
		ID:               d.ID.String(),
		DonationTypeID:   d.DonationTypeID,
		DonationType:     d.DonationTypeName,
		Amount:           toDollars(d.Amount),
		TotalAmount:      toDollars(d.TotalAmount),
		Currency:         d.Currency,
		DonorName:        d.DisplayName(),
		DonorEmail:       d.DonorEmail,
		DonorPhone:       d.DonorPhone,
		Anonymous:        d.Anonymous,
		CoverFees:        d.CoverFees,
		Status:           string(d.Status),
		PaymentReference: d.PaymentReference,
		Notes:            d.Notes,
		CreatedAt:        d.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        d.UpdatedAt.Format(time.RFC3339),
	}
	if d.SponsorshipDate != nil {
		resp.SponsorshipDate = d.SponsorshipDate.Format(time.DateOnly)
	}
	return resp
}

func badParam(w http.ResponseWriter, field, reason string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:  http.StatusText(http.StatusBadRequest),
		Field:  field,
		Reason: reason,
	})
}

// parseBound разбирает границу диапазона дат. Дата без времени в конце диапазона покрывает весь день.
func parseBound(raw string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	day, err := parseDay(raw)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		return model.EndOfDay(day), nil
	}
	return day, nil
}

func parseDonationFilter(r *http.Request) (model.DonationFilter, string, error) {
	q := r.URL.Query()
	var f model.DonationFilter

	if raw := q.Get("donationType"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, "donationType", err
		}
		f.DonationTypeID = &id
	}

	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseDonationStatus(raw)
		if err != nil {
			return f, "status", err
		}
		f.Status = &st
	}

	if raw := q.Get("startDate"); raw != "" {
		t, err := parseBound(raw, false)
		if err != nil {
			return f, "startDate", err
		}
		f.StartDate = &t
	}

	if raw := q.Get("endDate"); raw != "" {
		t, err := parseBound(raw, true)
		if err != nil {
			return f, "endDate", err
		}
		f.EndDate = &t
	}

	f.Query = strings.TrimSpace(q.Get("q"))
	return f, "", nil
}

// ListDonations возвращает пожертвования по фильтру.
func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	f, field, err := parseDonationFilter(r)
	if err != nil {
		badParam(w, field, "is invalid")
		return
	}

	donations, err := h.service.ListDonations(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "list donations", err)
		return
	}

	resp := make([]donationResponse, 0, len(donations))
	for _, d := range donations {
		resp = append(resp, newDonationResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

func donationID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// GetDonation возвращает одно пожертвование.
func (h *Handler) GetDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(r)
	if !ok {
		badParam(w, "id", "must be a UUID")
		return
	}

	d, err := h.service.GetDonation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get donation", err)
		return
	}

	writeJSON(w, http.StatusOK, newDonationResponse(*d))
}

type updateDonationRequest struct {
	Status     *string `json:"status"`
	DonorName  *string `json:"donorName"`
	DonorEmail *string `json:"donorEmail"`
	DonorPhone *string `json:"donorPhone"`
	Notes      *string `json:"notes"`
}

// UpdateDonation применяет ручную правку администратора.
func (h *Handler) UpdateDonation(w http.ResponseWriter, r *http.Request) {
	id, ok := donationID(r)
	if !ok {
		badParam(w, "id", "must be a UUID")
		return
	}

	var req updateDonationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		badParam(w, "", "malformed JSON body")
		return
	}

	upd := model.DonationUpdate{
		DonorName:  req.DonorName,
		DonorEmail: req.DonorEmail,
		DonorPhone: req.DonorPhone,
		Notes:      req.Notes,
	}
	if req.Status != nil {
		st, err := model.ParseDonationStatus(*req.Status)
		if err != nil {
			badParam(w, "status", "must be one of pending, completed, failed, refunded")
			return
		}
		upd.Status = &st
	}

	d, err := h.service.UpdateDonation(r.Context(), id, upd)
	if err != nil {
		h.writeServiceError(w, "update donation", err)
		return
	}

	writeJSON(w, http.StatusOK, newDonationResponse(*d))
}

type generateIftarRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// GenerateIftarDates добавляет дни в календарь ифтаров.
func (h *Handler) GenerateIftarDates(w http.ResponseWriter, r *http.Request) {
	var req generateIftarRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		badParam(w, "", "malformed JSON body")
		return
	}

	start, err := parseDay(req.Start)
	if err != nil {
		badParam(w, "start", "must be YYYY-MM-DD")
		return
	}
	end, err := parseDay(req.End)
	if err != nil {
		badParam(w, "end", "must be YYYY-MM-DD")
		return
	}

	n, err := h.service.GenerateIftarDates(r.Context(), start, end)
	if err != nil {
		h.writeServiceError(w, "generate iftar dates", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"created": n})
}
