// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/edjs/seat-reservation/internal/model"
	"github.com/edjs/seat-reservation/internal/service"
)

// ReservationService is the part of the service layer the handlers call.
type ReservationService interface {
	CheckCapacity(ctx context.Context, sessionID string, requestedSeats int) (*model.CapacityResult, error)
	ReserveSeats(ctx context.Context, sessionID, requesterID string, requestedSeats int,
		bookingType model.BookingType, organizationID *string) (*model.Booking, error)
	ListBookings(ctx context.Context, sessionID string) ([]model.Booking, error)
}

// SessionHandler holds the HTTP handlers for session capacity and
// reservations.
type SessionHandler struct {
	svc ReservationService
	log *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(svc ReservationService, log *zap.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeServiceError maps service error kinds onto HTTP status codes.
func (h *SessionHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr  *service.ValidationError
		nfErr *service.NotFoundError
		ceErr *service.CapacityExceededError
	)
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.As(err, &nfErr):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.As(err, &ceErr):
		alts := ceErr.Alternatives
		if alts == nil {
			alts = []model.AlternativeSession{}
		}
		writeJSON(w, http.StatusConflict, model.CapacityErrorResponse{
			Error:               "not enough seats available",
			AvailableSeats:      ceErr.Available,
			AlternativeSessions: alts,
		})
	default:
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CheckCapacity handles GET /sessions/{id}/capacity?seats=N
func (h *SessionHandler) CheckCapacity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	seats, err := strconv.Atoi(r.URL.Query().Get("seats"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "seats must be an integer")
		return
	}

	res, err := h.svc.CheckCapacity(r.Context(), id, seats)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Reserve handles POST /sessions/{id}/reservations
func (h *SessionHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.ReserveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	booking, err := h.svc.ReserveSeats(r.Context(), id, req.RequesterID, req.Seats, req.BookingType, req.OrganizationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// ListBookings handles GET /sessions/{id}/bookings
func (h *SessionHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bookings, err := h.svc.ListBookings(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck handles GET /health
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
