package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/edjs/seat-reservation/internal/cache"
	"github.com/edjs/seat-reservation/internal/model"
	"github.com/edjs/seat-reservation/internal/repository"
)

// memStore is an in-memory SessionStore and BookingStore. Reserve holds the
// store lock across check and insert, like the row lock in Postgres.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	bookings []model.Booking

	// onRead, when set, runs after GetAvailability has taken its snapshot.
	onRead func()
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]model.Session{}}
}

func (m *memStore) addSession(s model.Session) model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.sessions[s.ID] = s
	return s
}

func (m *memStore) addBooking(sessionID string, tickets int, status model.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, model.Booking{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		UserID:          "seed",
		BookingType:     model.BookingIndividual,
		NumberOfTickets: tickets,
		Status:          status,
		PaymentStatus:   model.PaymentPending,
		CreatedAt:       time.Now(),
	})
}

func (m *memStore) cancel(bookingID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].ID == bookingID {
			m.bookings[i].Status = model.BookingCancelled
		}
	}
}

func (m *memStore) claimsLocked(sessionID string) []model.SeatClaim {
	var claims []model.SeatClaim
	for _, b := range m.bookings {
		if b.SessionID == sessionID {
			claims = append(claims, model.SeatClaim{Tickets: b.NumberOfTickets, Status: b.Status})
		}
	}
	return claims
}

func (m *memStore) bookedSeats(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := model.SessionAvailability{Claims: m.claimsLocked(sessionID)}
	return snap.BookedSeats()
}

func (m *memStore) GetAvailability(_ context.Context, sessionID string) (*model.SessionAvailability, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	var snap *model.SessionAvailability
	if ok {
		snap = &model.SessionAvailability{Session: s, Claims: m.claimsLocked(sessionID)}
	}
	hook := m.onRead
	m.mu.Unlock()

	if !ok {
		return nil, repository.ErrNotFound
	}
	if hook != nil {
		hook()
	}
	return snap, nil
}

// ListPublishedSiblings applies the same filters as the SQL query but leaves
// the order to map iteration.
func (m *memStore) ListPublishedSiblings(_ context.Context, showID, excludeID string, from time.Time) ([]model.SessionAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.SessionAvailability
	for id, s := range m.sessions {
		if s.ShowID != showID || id == excludeID || s.Status != model.SessionPublished || s.Date.Before(from) {
			continue
		}
		out = append(out, model.SessionAvailability{Session: s, Claims: m.claimsLocked(id)})
	}
	return out, nil
}

func (m *memStore) Reserve(_ context.Context, b *model.Booking) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[b.SessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	snap := model.SessionAvailability{Session: s, Claims: m.claimsLocked(b.SessionID)}
	if available := snap.AvailableSeats(); available < b.NumberOfTickets {
		return nil, &repository.InsufficientSeatsError{Available: available}
	}

	booking := *b
	booking.ID = uuid.NewString()
	booking.Status = model.BookingPending
	booking.PaymentStatus = model.PaymentPending
	booking.CreatedAt = time.Now().UTC()
	m.bookings = append(m.bookings, booking)
	return &booking, nil
}

func (m *memStore) ListBySession(_ context.Context, sessionID string) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Booking
	for _, b := range m.bookings {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	return out, nil
}

// MockSessionStore is a testify mock of SessionStore.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetAvailability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SessionAvailability), args.Error(1)
}

func (m *MockSessionStore) ListPublishedSiblings(ctx context.Context, showID, excludeID string, from time.Time) ([]model.SessionAvailability, error) {
	args := m.Called(ctx, showID, excludeID, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionAvailability), args.Error(1)
}

// MockBookingStore is a testify mock of BookingStore.
type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

// recordingCache counts cache traffic and always loads.
type recordingCache struct {
	mu          sync.Mutex
	fetches     int
	invalidated []string
}

func (c *recordingCache) Fetch(ctx context.Context, _ string, load cache.Loader) (*model.SessionAvailability, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	return load(ctx)
}

func (c *recordingCache) Invalidate(_ context.Context, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, sessionID)
}
