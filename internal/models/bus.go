package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HoldDuration is how long a seat stays reserved for an in-flight payment.
// Fixed policy, not configurable.
const HoldDuration = 5 * time.Minute

// Bus represents a scheduled coach. Managed by the inventory service; read-only here.
type Bus struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BusName     string    `json:"bus_name" db:"bus_name"`
	Number      string    `json:"number" db:"number"`
	Origin      string    `json:"origin" db:"origin"`
	Destination string    `json:"destination" db:"destination"`
	Features    string    `json:"features" db:"features"`
	StartTime   string    `json:"start_time" db:"start_time"` // HH:MM:SS
	ReachTime   string    `json:"reach_time" db:"reach_time"` // HH:MM:SS
	NoOfSeats   int       `json:"no_of_seats" db:"no_of_seats"`
	Price       string    `json:"price" db:"price"` // NUMERIC(8,2)
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PriceMinorUnits converts the decimal price into integer minor units ("500.00" -> 50000)
func (b *Bus) PriceMinorUnits() (int64, error) {
	return ParseMinorUnits(b.Price)
}

// DepartureOn returns the scheduled departure instant for a journey date in loc
func (b *Bus) DepartureOn(date Date, loc *time.Location) (time.Time, error) {
	clock, err := parseClock(b.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
}

func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// lib/pq can hand back TIME values as full timestamps
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time of day %q", s)
}

// ParseMinorUnits converts a decimal amount with at most two fractional digits
// into minor units without going through floating point
func ParseMinorUnits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	if strings.HasPrefix(amount, "-") {
		return 0, fmt.Errorf("amount cannot be negative: %s", amount)
	}

	whole, frac, _ := strings.Cut(amount, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount has more than two decimal places: %s", amount)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}

	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return major*100 + minor, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatMinorUnits renders minor units as a two-decimal string (50000 -> "500.00")
func FormatMinorUnits(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// ============================================================================
// SEATS
// ============================================================================

// Seat is a physical seat on a bus.
// IsBooked is a legacy hint only; date-scoped Booking rows decide availability.
type Seat struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	BusID           uuid.UUID  `json:"bus_id" db:"bus_id"`
	SeatNumber      string     `json:"seat_number" db:"seat_number"`
	IsBooked        bool       `json:"is_booked" db:"is_booked"`
	IsHeld          bool       `json:"is_held" db:"is_held"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	HeldByPaymentID *uuid.UUID `json:"-" db:"held_by_payment_id"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// HasLiveHold reports whether the seat carries a hold that has not lapsed at now
func (s *Seat) HasLiveHold(now time.Time) bool {
	return s.IsHeld && s.HoldExpiresAt != nil && s.HoldExpiresAt.After(now)
}

// HasExpiredHold reports whether a hold timestamp is set and already in the past
func (s *Seat) HasExpiredHold(now time.Time) bool {
	return s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now)
}

// IsHeldBy reports whether a live hold belongs to the given payment
func (s *Seat) IsHeldBy(paymentID uuid.UUID, now time.Time) bool {
	return s.HasLiveHold(now) && s.HeldByPaymentID != nil && *s.HeldByPaymentID == paymentID
}

// HoldResult is returned when a hold is placed
type HoldResult struct {
	SeatID             uuid.UUID `json:"seat_id"`
	HeldUntil          time.Time `json:"held_until"`
	ClearedExpiredHold bool      `json:"cleared_expired_hold"`
}

// SeatAvailability describes a seat for one journey date
type SeatAvailability struct {
	SeatID     uuid.UUID `json:"seat_id" db:"seat_id"`
	SeatNumber string    `json:"seat_number" db:"seat_number"`
	Booked     bool      `json:"booked" db:"booked"`
	Held       bool      `json:"held" db:"-"`

	IsHeld        bool       `json:"-" db:"is_held"`
	HoldExpiresAt *time.Time `json:"-" db:"hold_expires_at"`
}

// BusAvailabilityResponse lists seat availability for a bus on a date
type BusAvailabilityResponse struct {
	BusID       uuid.UUID          `json:"bus_id"`
	JourneyDate Date               `json:"journey_date"`
	Seats       []SeatAvailability `json:"seats"`
	Available   int                `json:"available"`
}
