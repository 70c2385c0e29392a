package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a sold seat for one journey date.
// At most one row exists per (bus, seat, journey date).
type Booking struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	BusID       uuid.UUID `json:"bus_id" db:"bus_id"`
	SeatID      uuid.UUID `json:"seat_id" db:"seat_id"`
	JourneyDate Date      `json:"journey_date" db:"journey_date"`
	BookingTime time.Time `json:"booking_time" db:"booking_time"`
}

// BookingSummary is a booking joined with its bus, seat, ticket and payment
type BookingSummary struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	JourneyDate   Date          `json:"journey_date" db:"journey_date"`
	BookingTime   time.Time     `json:"booking_time" db:"booking_time"`
	BusID         uuid.UUID     `json:"bus_id" db:"bus_id"`
	BusName       string        `json:"bus_name" db:"bus_name"`
	BusNumber     string        `json:"bus_number" db:"bus_number"`
	Origin        string        `json:"origin" db:"origin"`
	Destination   string        `json:"destination" db:"destination"`
	StartTime     string        `json:"start_time" db:"start_time"`
	ReachTime     string        `json:"reach_time" db:"reach_time"`
	SeatID        uuid.UUID     `json:"seat_id" db:"seat_id"`
	SeatNumber    string        `json:"seat_number" db:"seat_number"`
	TicketID      *uuid.UUID    `json:"ticket_id,omitempty" db:"ticket_id"`
	TicketStatus  *TicketStatus `json:"ticket_status,omitempty" db:"ticket_status"`
	Amount        *int64        `json:"amount,omitempty" db:"amount"`
	PaymentStatus *string       `json:"payment_status,omitempty" db:"payment_status"`
}

// CancelBookingRequest identifies the booking to cancel
type CancelBookingRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// BookingConfirmation is returned after a verified payment commits a booking
type BookingConfirmation struct {
	Booking  *Booking      `json:"booking"`
	TicketID *uuid.UUID    `json:"ticket_id,omitempty"`
	OrderID  string        `json:"order_id"`
	Status   PaymentStatus `json:"payment_status"`
}

// CancelResult is returned after a booking is cancelled
type CancelResult struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SeatNumber  string    `json:"seat_number"`
	JourneyDate Date      `json:"journey_date"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RefundResult is returned after a refund completes
type RefundResult struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	TicketID      uuid.UUID     `json:"ticket_id"`
	TicketStatus  TicketStatus  `json:"ticket_status"`
	OrderID       string        `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        int64         `json:"amount"`
	AmountDisplay string        `json:"amount_display"`
	RefundedAt    time.Time     `json:"refunded_at"`
}

// User is the subset of the auth service's user record this service reads
type User struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Username string    `json:"username" db:"username"`
	Email    string    `json:"email" db:"email"`
}
