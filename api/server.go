/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:    Unique ID per request for tracing
  2. RealIP:       Resolve client address behind proxies
  3. Logger:       Request logging
  4. Recoverer:    Panic recovery (500 instead of crash)
  5. CORS:         Cross-origin requests for frontends
  6. WithIdentity: Trusted identity headers into context
  7. RateLimiter:  Per-host token bucket on mutating methods

ROUTE GROUPS:
  /api/caregivers       Caregiver registration
  /api/patients         Patient registration
  /api/availability     Caregiver free-date uploads
  /api/vaccines/*       Dose inventory
  /api/schedule         Schedule query
  /api/appointments/*   Reservation, listing, cancellation

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, limiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Role", "X-Username"},
		AllowCredentials: true,
	}))
	r.Use(WithIdentity)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Directory routes
		r.Post("/caregivers", h.CreateCaregiver)
		r.Post("/patients", h.CreatePatient)

		// Caregiver routes
		r.Post("/availability", h.UploadAvailability)
		r.Post("/vaccines/doses", h.AddDoses)

		// Schedule routes
		r.Get("/schedule", h.GetSchedule)

		// Appointment routes
		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.ListAppointments)
			r.Post("/", h.Reserve)
			r.Delete("/{id}", h.CancelAppointment)
		})
	})

	return r
}
