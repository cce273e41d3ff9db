package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/masjid-donations/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса пожертвований.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		// Preflight-запросы не совпадают ни с одним маршрутом, поэтому CORS стоит до маршрутизации.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))

		// Вебхук проверяет подпись по сырому телу запроса, поэтому идёт без gzip.
		r.Post("/webhooks/stripe", h.StripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.GzipMiddleware)

			r.Post("/payment-intents", h.CreatePaymentIntent)
			r.Get("/payment-status", h.GetPaymentStatus)
			r.Get("/fees", h.GetFees)
			r.Get("/donation-types", h.GetDonationTypes)
			r.Get("/iftar-dates", h.GetIftarDates)
			r.Get("/prayer-times", h.GetPrayerTimes)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(custommiddleware.GzipMiddleware)
			r.Use(h.adminAuth.Middleware)

			r.Get("/donations", h.ListDonations)
			r.Get("/donations/{id}", h.GetDonation)
			r.Put("/donations/{id}", h.UpdateDonation)
			r.Post("/iftar-dates", h.GenerateIftarDates)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
