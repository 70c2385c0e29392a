package models

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket
type TicketStatus string

const (
	TicketActive   TicketStatus = "ACTIVE"
	TicketUsed     TicketStatus = "USED"
	TicketRefunded TicketStatus = "REFUNDED"
)

// CanTransitionTo reports whether a ticket may move from s to next.
// ACTIVE->USED and ACTIVE/USED->REFUNDED are the only forward moves.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	switch s {
	case TicketActive:
		return next == TicketUsed || next == TicketRefunded
	case TicketUsed:
		return next == TicketRefunded
	case TicketRefunded:
		return false
	default:
		return false
	}
}

// Ticket is issued once per booking.
// A refunded ticket is detached from its (deleted) booking and kept;
// JourneyDate is copied at issue time so it survives the booking.
type Ticket struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	BookingID   *uuid.UUID   `json:"booking_id,omitempty" db:"booking_id"`
	UserID      uuid.UUID    `json:"user_id" db:"user_id"`
	JourneyDate Date         `json:"journey_date" db:"journey_date"`
	Status      TicketStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// TicketDetails is everything printed on a ticket or shown when it is scanned
type TicketDetails struct {
	TicketID      uuid.UUID    `json:"ticket_id" db:"ticket_id"`
	Status        TicketStatus `json:"status" db:"status"`
	BookingID     uuid.UUID    `json:"booking_id" db:"booking_id"`
	JourneyDate   Date         `json:"journey_date" db:"journey_date"`
	PassengerName string       `json:"passenger_name" db:"passenger_name"`
	Email         string       `json:"email" db:"email"`
	BusName       string       `json:"bus_name" db:"bus_name"`
	BusNumber     string       `json:"bus_number" db:"bus_number"`
	Origin        string       `json:"origin" db:"origin"`
	Destination   string       `json:"destination" db:"destination"`
	StartTime     string       `json:"start_time" db:"start_time"`
	ReachTime     string       `json:"reach_time" db:"reach_time"`
	SeatNumber    string       `json:"seat_number" db:"seat_number"`
	Amount        *int64       `json:"amount,omitempty" db:"amount"`
	Currency      *string      `json:"currency,omitempty" db:"currency"`
}

// Departure builds the bus departure instant on the journey date
func (d *TicketDetails) Departure(loc *time.Location) (time.Time, error) {
	bus := Bus{StartTime: d.StartTime}
	return bus.DepartureOn(d.JourneyDate, loc)
}

// VerificationReason explains why a ticket failed verification
type VerificationReason string

const (
	ReasonNotFound     VerificationReason = "NOT_FOUND"
	ReasonRefunded     VerificationReason = "REFUNDED"
	ReasonAlreadyUsed  VerificationReason = "ALREADY_USED"
	ReasonExpired      VerificationReason = "EXPIRED"
	ReasonUnverifiable VerificationReason = "UNVERIFIABLE" // same-day ticket whose bus start time cannot be parsed
)

// TicketVerification is the outcome of scanning a ticket
type TicketVerification struct {
	Valid   bool               `json:"valid"`
	Reason  VerificationReason `json:"reason,omitempty"`
	Message string             `json:"message"`
	Ticket  *TicketDetails     `json:"ticket,omitempty"`
}
