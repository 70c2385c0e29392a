package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// BookingsSeatDateConstraint guards one booking per (bus, seat, journey date)
const BookingsSeatDateConstraint = "bookings_bus_seat_date_key"

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ExistsForSeatDate reports whether the seat is already sold for the date
func (r *BookingRepository) ExistsForSeatDate(ctx context.Context, q Queryer, busID, seatID uuid.UUID, journeyDate models.Date) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE bus_id = $1 AND seat_id = $2 AND journey_date = $3
		)`

	var exists bool
	if err := q.GetContext(ctx, &exists, query, busID, seatID, journeyDate); err != nil {
		return false, fmt.Errorf("failed to check booking existence: %w", err)
	}
	return exists, nil
}

// Create inserts a booking. A duplicate (bus, seat, date) surfaces as a
// unique violation on BookingsSeatDateConstraint.
func (r *BookingRepository) Create(ctx context.Context, q Queryer, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}

	query := `
		INSERT INTO bookings (id, user_id, bus_id, seat_id, journey_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING booking_time`

	err := q.QueryRowxContext(ctx, query,
		booking.ID, booking.UserID, booking.BusID, booking.SeatID, booking.JourneyDate,
	).Scan(&booking.BookingTime)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByIDForUser returns the user's booking or nil
func (r *BookingRepository) GetByIDForUser(ctx context.Context, q Queryer, bookingID, userID uuid.UUID) (*models.Booking, error) {
	query := `
		SELECT id, user_id, bus_id, seat_id, journey_date, booking_time
		FROM bookings
		WHERE id = $1 AND user_id = $2`

	var booking models.Booking
	err := q.GetContext(ctx, &booking, query, bookingID, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// Delete removes a booking. Its ticket cascades, payments keep a NULL reference.
func (r *BookingRepository) Delete(ctx context.Context, q Queryer, bookingID uuid.UUID) error {
	query := `DELETE FROM bookings WHERE id = $1`

	result, err := q.ExecContext(ctx, query, bookingID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("failed to delete booking: %s not found", bookingID)
	}
	return nil
}

// ListSummariesByUser returns the user's bookings with bus, seat, ticket and payment data
func (r *BookingRepository) ListSummariesByUser(ctx context.Context, userID uuid.UUID) ([]models.BookingSummary, error) {
	query := `
		SELECT bk.id, bk.journey_date, bk.booking_time,
		       b.id AS bus_id, b.bus_name, b.number AS bus_number, b.origin, b.destination,
		       b.start_time, b.reach_time,
		       s.id AS seat_id, s.seat_number,
		       t.id AS ticket_id, t.status AS ticket_status,
		       p.amount, p.status AS payment_status
		FROM bookings bk
		JOIN buses b ON b.id = bk.bus_id
		JOIN seats s ON s.id = bk.seat_id
		LEFT JOIN tickets t ON t.booking_id = bk.id
		LEFT JOIN payments p ON p.booking_id = bk.id AND p.status = 'SUCCESS'
		WHERE bk.user_id = $1
		ORDER BY bk.booking_time DESC`

	bookings := []models.BookingSummary{}
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
