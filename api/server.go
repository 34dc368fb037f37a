/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Metrics:    Per-endpoint request counters
  4. RateLimit:  Global token bucket
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/reservations/*   Reservation lifecycle, payments, documents
  /api/reports/*        Aggregated workbooks
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lodgeworks/booking-engine/metrics"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	metrics.Register()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", h.ListReservations)
			r.Post("/", h.CreateReservation)
			r.Get("/upcoming", h.UpcomingReservations)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetReservation)
				r.Put("/", h.UpdateReservation)
				r.Delete("/", h.DeleteReservation)
				r.Put("/status", h.UpdateStatus)
				r.Put("/payment-status", h.UpdatePaymentStatus)
				r.Get("/payments", h.ListPayments)
				r.Post("/payments", h.RegisterPayment)
				r.Get("/invoice", h.Invoice)
				r.Post("/notify", h.Notify)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", h.MonthlyReport)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
