// Package model defines the core domain types for session seat reservation.
package model

import "time"

// SessionStatus is the publication state of a session.
type SessionStatus string

const (
	SessionDraft     SessionStatus = "draft"
	SessionPublished SessionStatus = "published"
	SessionCancelled SessionStatus = "cancelled"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentStatus tracks the payment side of a booking. The core only ever
// writes PaymentPending; the other values are set by payment flows.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Session is one scheduled showing of a show at a venue, with a fixed
// seat capacity.
type Session struct {
	ID            string        `json:"id"`
	ShowID        string        `json:"spectacle_id"`
	Date          time.Time     `json:"session_date"`
	Time          string        `json:"session_time"`
	Venue         string        `json:"venue"`
	TotalCapacity int           `json:"total_capacity"`
	Status        SessionStatus `json:"status"`
}

// SeatClaim is the part of a booking that counts against capacity.
type SeatClaim struct {
	Tickets int           `json:"number_of_tickets"`
	Status  BookingStatus `json:"status"`
}

// SessionAvailability is a session together with every booking held on it.
type SessionAvailability struct {
	Session Session     `json:"session"`
	Claims  []SeatClaim `json:"claims"`
}

// BookedSeats sums the tickets of all non-cancelled claims.
func (a *SessionAvailability) BookedSeats() int {
	booked := 0
	for _, c := range a.Claims {
		if c.Status == BookingCancelled {
			continue
		}
		booked += c.Tickets
	}
	return booked
}

// AvailableSeats returns the number of seats that can still be booked.
// It can be negative if the data store already holds an oversold session.
func (a *SessionAvailability) AvailableSeats() int {
	return a.Session.TotalCapacity - a.BookedSeats()
}

// Booking is a request for a number of seats in one session.
type Booking struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"session_id"`
	UserID          string        `json:"user_id"`
	OrganizationID  *string       `json:"organization_id,omitempty"`
	BookingType     BookingType   `json:"booking_type"`
	NumberOfTickets int           `json:"number_of_tickets"`
	Status          BookingStatus `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// AlternativeSession is a sibling session offered when the requested one
// cannot seat the party.
type AlternativeSession struct {
	ID             string    `json:"id"`
	Date           time.Time `json:"date"`
	Time           string    `json:"time"`
	Venue          string    `json:"venue"`
	AvailableSeats int       `json:"available_seats"`
}

// CapacityResult is the outcome of a capacity check.
type CapacityResult struct {
	SessionID           string               `json:"session_id"`
	RequestedSeats      int                  `json:"requested_seats"`
	AvailableSeats      int                  `json:"available_seats"`
	CanBook             bool                 `json:"can_book"`
	AlternativeSessions []AlternativeSession `json:"alternative_sessions,omitempty"`
}

// ReserveRequest is the payload for reserving seats in a session.
type ReserveRequest struct {
	RequesterID    string      `json:"requester_id"`
	Seats          int         `json:"seats"`
	BookingType    BookingType `json:"booking_type"`
	OrganizationID *string     `json:"organization_id,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CapacityErrorResponse is returned when a reservation is refused for lack
// of seats.
type CapacityErrorResponse struct {
	Error               string               `json:"error"`
	AvailableSeats      int                  `json:"available_seats"`
	AlternativeSessions []AlternativeSession `json:"alternative_sessions"`
}
