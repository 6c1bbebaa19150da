// Package repository implements the PostgreSQL queries behind seat
// reservation. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edjs/seat-reservation/internal/model"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("not found")

// InsufficientSeatsError is returned by Reserve when the session cannot seat
// the party at write time.
type InsufficientSeatsError struct {
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats: %d available", e.Available)
}

// sessionWithClaims selects a session joined to each of its bookings. A
// session without bookings yields one row with NULL booking columns.
const sessionWithClaims = `
	SELECT s.id, s.spectacle_id, s.session_date, s.session_time, s.venue,
	       s.total_capacity, s.status, b.number_of_tickets, b.status
	FROM sessions s
	LEFT JOIN bookings b ON b.session_id = s.id`

// SessionRepository reads sessions and the bookings held against them.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetAvailability returns a session with all its booking claims, or
// ErrNotFound.
func (r *SessionRepository) GetAvailability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	rows, err := r.db.Query(ctx, sessionWithClaims+` WHERE s.id = $1`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session availability: %w", err)
	}
	out, err := collectAvailability(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

// ListPublishedSiblings returns the published sessions of a show dated on or
// after from, excluding excludeID, ordered by date, time and id.
func (r *SessionRepository) ListPublishedSiblings(ctx context.Context, showID, excludeID string, from time.Time) ([]model.SessionAvailability, error) {
	rows, err := r.db.Query(ctx, sessionWithClaims+`
		WHERE s.spectacle_id = $1
		  AND s.id <> $2
		  AND s.status = $3
		  AND s.session_date >= $4
		ORDER BY s.session_date, s.session_time, s.id`,
		showID, excludeID, string(model.SessionPublished), from,
	)
	if err != nil {
		return nil, fmt.Errorf("list sibling sessions: %w", err)
	}
	return collectAvailability(rows)
}

// collectAvailability folds joined rows into one SessionAvailability per
// session. Rows for the same session must be adjacent.
func collectAvailability(rows pgx.Rows) ([]model.SessionAvailability, error) {
	defer rows.Close()

	var out []model.SessionAvailability
	for rows.Next() {
		var (
			s       model.Session
			status  string
			clock   pgtype.Time
			tickets *int
			bStatus *string
		)
		if err := rows.Scan(&s.ID, &s.ShowID, &s.Date, &clock, &s.Venue,
			&s.TotalCapacity, &status, &tickets, &bStatus); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Status = model.SessionStatus(status)
		s.Time = formatClock(clock)

		if n := len(out); n == 0 || out[n-1].Session.ID != s.ID {
			out = append(out, model.SessionAvailability{Session: s})
		}
		if tickets != nil && bStatus != nil {
			last := &out[len(out)-1]
			last.Claims = append(last.Claims, model.SeatClaim{
				Tickets: *tickets,
				Status:  model.BookingStatus(*bStatus),
			})
		}
	}
	return out, rows.Err()
}

func formatClock(t pgtype.Time) string {
	if !t.Valid {
		return ""
	}
	d := time.Duration(t.Microseconds) * time.Microsecond
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// Reserve re-checks capacity and inserts the booking in a single transaction.
//
// The session row is locked with SELECT ... FOR UPDATE before the booked
// seats are summed, so concurrent reservations on the same session queue up
// behind each other and each one sees the bookings committed before it. Two
// requests that each fit on their own can therefore never both be written
// when together they would exceed total_capacity.
//
// The ID, Status, PaymentStatus and CreatedAt of b are assigned here.
func (r *BookingRepository) Reserve(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: lock the session row. ──────────────────────────────────────
	var capacity int
	err = tx.QueryRow(ctx,
		`SELECT total_capacity FROM sessions WHERE id = $1 FOR UPDATE`,
		b.SessionID,
	).Scan(&capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock session row: %w", err)
	}

	// ── Step 2: sum seats held by non-cancelled bookings. ─────────────────
	var booked int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(number_of_tickets), 0)
		 FROM bookings
		 WHERE session_id = $1 AND status <> $2`,
		b.SessionID, string(model.BookingCancelled),
	).Scan(&booked)
	if err != nil {
		return nil, fmt.Errorf("sum booked seats: %w", err)
	}

	// ── Step 3: guard against overbooking. ────────────────────────────────
	if available := capacity - booked; available < b.NumberOfTickets {
		return nil, &InsufficientSeatsError{Available: available}
	}

	// ── Step 4: create the booking. ───────────────────────────────────────
	booking := *b
	booking.ID = uuid.New().String()
	booking.Status = model.BookingPending
	booking.PaymentStatus = model.PaymentPending
	booking.CreatedAt = time.Now().UTC()

	_, err = tx.Exec(ctx,
		`INSERT INTO bookings (id, session_id, user_id, organization_id, booking_type,
		                       number_of_tickets, status, payment_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		booking.ID, booking.SessionID, booking.UserID, booking.OrganizationID,
		string(booking.BookingType), booking.NumberOfTickets,
		string(booking.Status), string(booking.PaymentStatus), booking.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &booking, nil
}

// ListBySession returns all bookings of a session, oldest first.
func (r *BookingRepository) ListBySession(ctx context.Context, sessionID string) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, user_id, organization_id, booking_type,
		        number_of_tickets, status, payment_status, created_at
		 FROM bookings
		 WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var (
			b                          model.Booking
			bookingType, status, paySt string
		)
		if err := rows.Scan(&b.ID, &b.SessionID, &b.UserID, &b.OrganizationID, &bookingType,
			&b.NumberOfTickets, &status, &paySt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.BookingType = model.BookingType(bookingType)
		b.Status = model.BookingStatus(status)
		b.PaymentStatus = model.PaymentStatus(paySt)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
