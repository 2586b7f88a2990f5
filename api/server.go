/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for a kiosk or admin frontend

ROUTE GROUPS:
  /api/employees/{id}/days/*  Punching and day reads
  /api/employees/{id}/paid    Payroll lock
  /api/schedule               Active schedule
  /api/audit                  Audit log

SECURITY NOTE:
  No authentication middleware. Identity is handled by the deployment in
  front of this service; actor_id is taken from the request as given.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/days", h.ListDays)
			r.Route("/days/{date}", func(r chi.Router) {
				r.Get("/", h.GetDay)
				r.Post("/punch", h.Punch)
				r.Post("/undo", h.Undo)
				r.Post("/overtime", h.SetOvertime)
			})
			r.Post("/paid", h.MarkPaid)
		})

		r.Get("/schedule", h.GetSchedule)
		r.Get("/audit", h.ListAudit)
	})

	return r
}
