// Package service implements seat-capacity checks, alternative-session
// search and reservation on top of the repository layer.
package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edjs/seat-reservation/internal/cache"
	"github.com/edjs/seat-reservation/internal/model"
	"github.com/edjs/seat-reservation/internal/repository"
)

// maxAlternatives caps the number of substitute sessions offered.
const maxAlternatives = 5

// SessionStore reads sessions with their booking claims. Implementations
// return repository.ErrNotFound for unknown sessions.
type SessionStore interface {
	GetAvailability(ctx context.Context, sessionID string) (*model.SessionAvailability, error)
	ListPublishedSiblings(ctx context.Context, showID, excludeID string, from time.Time) ([]model.SessionAvailability, error)
}

// BookingStore persists bookings. Reserve must re-check capacity and insert
// atomically, returning *repository.InsufficientSeatsError when the session
// cannot seat the party.
type BookingStore interface {
	Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error)
}

// AvailabilityCache fronts SessionStore.GetAvailability for capacity checks.
type AvailabilityCache interface {
	Fetch(ctx context.Context, sessionID string, load cache.Loader) (*model.SessionAvailability, error)
	Invalidate(ctx context.Context, sessionID string)
}

// ReservationService checks capacity and reserves seats.
type ReservationService struct {
	sessions SessionStore
	bookings BookingStore
	cache    AvailabilityCache
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithCache sets the availability cache used by CheckCapacity.
func WithCache(c AvailabilityCache) Option {
	return func(s *ReservationService) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *ReservationService) { s.log = log }
}

// WithLocation sets the timezone that decides which sessions are in the past.
func WithLocation(loc *time.Location) Option {
	return func(s *ReservationService) { s.loc = loc }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// NewReservationService constructs a ReservationService with its
// dependencies.
func NewReservationService(sessions SessionStore, bookings BookingStore, opts ...Option) *ReservationService {
	s := &ReservationService{
		sessions: sessions,
		bookings: bookings,
		cache:    cache.Nop{},
		log:      zap.NewNop(),
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckCapacity reports whether requestedSeats can be booked in the session.
// When they cannot, the result lists up to five alternative sessions of the
// same show.
func (s *ReservationService) CheckCapacity(ctx context.Context, sessionID string, requestedSeats int) (*model.CapacityResult, error) {
	if err := validateRequest(sessionID, requestedSeats); err != nil {
		return nil, err
	}

	snap, err := s.cache.Fetch(ctx, sessionID, func(ctx context.Context) (*model.SessionAvailability, error) {
		return s.loadAvailability(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return s.evaluate(ctx, snap, requestedSeats), nil
}

// ReserveSeats creates a pending booking for requestedSeats in the session.
// Capacity is checked again here, whatever the caller saw before, and the
// write itself is guarded by the store.
func (s *ReservationService) ReserveSeats(
	ctx context.Context,
	sessionID, requesterID string,
	requestedSeats int,
	bookingType model.BookingType,
	organizationID *string,
) (*model.Booking, error) {
	if err := validateRequest(sessionID, requestedSeats); err != nil {
		return nil, err
	}
	requester, err := model.ResolveRequester(requesterID, bookingType, organizationID)
	if err != nil {
		return nil, requesterError(err)
	}

	log := s.log.With(
		zap.String("session_id", sessionID),
		zap.String("requester_id", requester.UserID()),
		zap.String("booking_type", string(requester.BookingType())),
		zap.Int("seats", requestedSeats),
	)

	snap, err := s.loadAvailability(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBookable(&snap.Session); err != nil {
		return nil, err
	}
	check := s.evaluate(ctx, snap, requestedSeats)
	if !check.CanBook {
		log.Info("reservation refused", zap.Int("available", check.AvailableSeats))
		return nil, &CapacityExceededError{
			SessionID:    sessionID,
			Requested:    requestedSeats,
			Available:    check.AvailableSeats,
			Alternatives: check.AlternativeSessions,
		}
	}

	booking, err := s.bookings.Reserve(ctx, &model.Booking{
		SessionID:       sessionID,
		UserID:          requester.UserID(),
		OrganizationID:  requester.OrganizationID(),
		BookingType:     requester.BookingType(),
		NumberOfTickets: requestedSeats,
	})
	if err != nil {
		var short *repository.InsufficientSeatsError
		switch {
		case errors.As(err, &short):
			// Lost the race against a concurrent reservation.
			alts := s.alternativesOrNone(ctx, &snap.Session, requestedSeats)
			log.Info("reservation refused at write", zap.Int("available", short.Available))
			return nil, &CapacityExceededError{
				SessionID:    sessionID,
				Requested:    requestedSeats,
				Available:    short.Available,
				Alternatives: alts,
			}
		case errors.Is(err, repository.ErrNotFound):
			return nil, &NotFoundError{SessionID: sessionID}
		default:
			log.Error("reservation write failed", zap.Error(err))
			return nil, &PersistenceError{Op: "reserve seats", Err: err}
		}
	}

	s.cache.Invalidate(ctx, sessionID)
	log.Info("seats reserved", zap.String("booking_id", booking.ID))
	return booking, nil
}

// ListBookings returns every booking of a session.
func (s *ReservationService) ListBookings(ctx context.Context, sessionID string) ([]model.Booking, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if _, err := s.loadAvailability(ctx, sessionID); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &PersistenceError{Op: "list bookings", Err: err}
	}
	return bookings, nil
}

func (s *ReservationService) loadAvailability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	snap, err := s.sessions.GetAvailability(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{SessionID: sessionID}
		}
		return nil, &PersistenceError{Op: "load session availability", Err: err}
	}
	return snap, nil
}

// evaluate builds the capacity result for snap. Alternatives are best
// effort: a failed lookup leaves the list empty.
func (s *ReservationService) evaluate(ctx context.Context, snap *model.SessionAvailability, requestedSeats int) *model.CapacityResult {
	available := snap.AvailableSeats()
	res := &model.CapacityResult{
		SessionID:      snap.Session.ID,
		RequestedSeats: requestedSeats,
		AvailableSeats: available,
		CanBook:        available >= requestedSeats,
	}
	if !res.CanBook {
		res.AlternativeSessions = s.alternativesOrNone(ctx, &snap.Session, requestedSeats)
	}
	return res
}

func (s *ReservationService) alternativesOrNone(ctx context.Context, origin *model.Session, requestedSeats int) []model.AlternativeSession {
	alts, err := s.findAlternatives(ctx, origin, requestedSeats)
	if err != nil {
		s.log.Warn("alternative session lookup failed",
			zap.String("session_id", origin.ID),
			zap.Error(err),
		)
		return nil
	}
	return alts
}

// checkBookable rejects sessions that are not published or already past.
func (s *ReservationService) checkBookable(session *model.Session) error {
	if session.Status != model.SessionPublished {
		return &ValidationError{Field: "session_id", Reason: "session is not open for booking"}
	}
	if civilDate(session.Date).Before(s.today()) {
		return &ValidationError{Field: "session_id", Reason: "session has already taken place"}
	}
	return nil
}

// findAlternatives lists published, non-past sessions of the same show that
// can seat requestedSeats, earliest first.
func (s *ReservationService) findAlternatives(ctx context.Context, origin *model.Session, requestedSeats int) ([]model.AlternativeSession, error) {
	today := s.today()
	candidates, err := s.sessions.ListPublishedSiblings(ctx, origin.ShowID, origin.ID, today)
	if err != nil {
		return nil, &PersistenceError{Op: "list alternative sessions", Err: err}
	}

	alts := make([]model.AlternativeSession, 0, maxAlternatives)
	for i := range candidates {
		c := &candidates[i]
		switch {
		case c.Session.ID == origin.ID,
			c.Session.ShowID != origin.ShowID,
			c.Session.Status != model.SessionPublished,
			civilDate(c.Session.Date).Before(today):
			continue
		}
		available := c.AvailableSeats()
		if available < requestedSeats {
			continue
		}
		alts = append(alts, model.AlternativeSession{
			ID:             c.Session.ID,
			Date:           c.Session.Date,
			Time:           c.Session.Time,
			Venue:          c.Session.Venue,
			AvailableSeats: available,
		})
	}

	slices.SortStableFunc(alts, func(a, b model.AlternativeSession) int {
		return cmp.Or(
			civilDate(a.Date).Compare(civilDate(b.Date)),
			strings.Compare(a.Time, b.Time),
			strings.Compare(a.ID, b.ID),
		)
	})
	if len(alts) > maxAlternatives {
		alts = alts[:maxAlternatives]
	}
	return alts, nil
}

// today is the current civil date in the service timezone, as UTC midnight
// to match DATE columns.
func (s *ReservationService) today() time.Time {
	return civilDate(s.now().In(s.loc))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return &ValidationError{Field: "session_id", Reason: "must be a UUID"}
	}
	return nil
}

func validateRequest(sessionID string, requestedSeats int) error {
	if requestedSeats <= 0 {
		return &ValidationError{Field: "requested_seats", Reason: "must be a positive integer"}
	}
	return validateSessionID(sessionID)
}

func requesterError(err error) error {
	field := "requester"
	switch {
	case errors.Is(err, model.ErrMissingRequester):
		field = "requester_id"
	case errors.Is(err, model.ErrUnknownBookingType):
		field = "booking_type"
	case errors.Is(err, model.ErrMissingOrganization), errors.Is(err, model.ErrUnexpectedOrganization):
		field = "organization_id"
	}
	return &ValidationError{Field: field, Reason: err.Error()}
}
