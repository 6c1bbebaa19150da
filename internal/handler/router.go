package handler

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(sessions *SessionHandler, db Pinger, log *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))             // structured access log
	r.Use(CORS)

	r.Get("/health", HealthCheck(db))

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/capacity", sessions.CheckCapacity)
		r.Post("/reservations", sessions.Reserve)
		r.Get("/bookings", sessions.ListBookings)
	})

	return r
}
