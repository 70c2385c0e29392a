package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// SeatRepository handles seat ledger database operations
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository creates a new SeatRepository
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

const seatColumns = `id, bus_id, seat_number, is_booked, is_held, hold_expires_at, held_by_payment_id, updated_at`

// ============================================================================
// READS
// ============================================================================

// GetByID returns a seat without locking it
func (r *SeatRepository) GetByID(ctx context.Context, seatID uuid.UUID) (*models.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1`

	var seat models.Seat
	err := r.db.GetContext(ctx, &seat, query, seatID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	return &seat, nil
}

// LockByID returns the seat row holding an exclusive lock until q's transaction ends
func (r *SeatRepository) LockByID(ctx context.Context, q Queryer, seatID uuid.UUID) (*models.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1 FOR UPDATE`

	var seat models.Seat
	err := q.GetContext(ctx, &seat, query, seatID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock seat: %w", err)
	}
	return &seat, nil
}

// ListAvailability returns every seat of a bus with its booking state for one date
func (r *SeatRepository) ListAvailability(ctx context.Context, busID uuid.UUID, journeyDate models.Date) ([]models.SeatAvailability, error) {
	query := `
		SELECT s.id AS seat_id, s.seat_number, s.is_held, s.hold_expires_at,
		       (b.id IS NOT NULL) AS booked
		FROM seats s
		LEFT JOIN bookings b
		       ON b.seat_id = s.id AND b.bus_id = s.bus_id AND b.journey_date = $2
		WHERE s.bus_id = $1
		ORDER BY length(s.seat_number), s.seat_number`

	var seats []models.SeatAvailability
	if err := r.db.SelectContext(ctx, &seats, query, busID, journeyDate); err != nil {
		return nil, fmt.Errorf("failed to list seat availability: %w", err)
	}
	return seats, nil
}

// ============================================================================
// HOLD OPERATIONS (callers hold the row lock)
// ============================================================================

// SetHold marks the seat held until expiresAt on behalf of a payment
func (r *SeatRepository) SetHold(ctx context.Context, q Queryer, seatID uuid.UUID, paymentID *uuid.UUID, expiresAt time.Time) error {
	query := `
		UPDATE seats
		SET is_held = TRUE, hold_expires_at = $2, held_by_payment_id = $3, updated_at = NOW()
		WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, seatID, expiresAt, paymentID); err != nil {
		return fmt.Errorf("failed to hold seat: %w", err)
	}
	return nil
}

// ClearHold removes any hold on the seat. Safe to call on an unheld seat.
func (r *SeatRepository) ClearHold(ctx context.Context, q Queryer, seatID uuid.UUID) error {
	query := `
		UPDATE seats
		SET is_held = FALSE, hold_expires_at = NULL, held_by_payment_id = NULL, updated_at = NOW()
		WHERE id = $1 AND (is_held OR hold_expires_at IS NOT NULL)`

	if _, err := q.ExecContext(ctx, query, seatID); err != nil {
		return fmt.Errorf("failed to release seat hold: %w", err)
	}
	return nil
}

// ClearHoldOwnedBy removes the hold only if it belongs to the given payment
func (r *SeatRepository) ClearHoldOwnedBy(ctx context.Context, q Queryer, seatID, paymentID uuid.UUID) (bool, error) {
	query := `
		UPDATE seats
		SET is_held = FALSE, hold_expires_at = NULL, held_by_payment_id = NULL, updated_at = NOW()
		WHERE id = $1 AND held_by_payment_id = $2`

	result, err := q.ExecContext(ctx, query, seatID, paymentID)
	if err != nil {
		return false, fmt.Errorf("failed to release seat hold: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// MarkBooked clears the hold and sets the legacy is_booked hint
func (r *SeatRepository) MarkBooked(ctx context.Context, q Queryer, seatID uuid.UUID) error {
	query := `
		UPDATE seats
		SET is_booked = TRUE, is_held = FALSE, hold_expires_at = NULL, held_by_payment_id = NULL, updated_at = NOW()
		WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, seatID); err != nil {
		return fmt.Errorf("failed to mark seat booked: %w", err)
	}
	return nil
}

// ClearBookedHint resets the legacy is_booked hint
func (r *SeatRepository) ClearBookedHint(ctx context.Context, q Queryer, seatID uuid.UUID) error {
	query := `UPDATE seats SET is_booked = FALSE, updated_at = NOW() WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, seatID); err != nil {
		return fmt.Errorf("failed to clear seat booked flag: %w", err)
	}
	return nil
}

// ============================================================================
// BULK CREATION
// ============================================================================

// CreateForBus inserts seats S1..Sn for a newly created bus
func (r *SeatRepository) CreateForBus(ctx context.Context, q Queryer, busID uuid.UUID, count int) error {
	query := `
		INSERT INTO seats (id, bus_id, seat_number)
		SELECT gen_random_uuid(), $1, 'S' || n
		FROM generate_series(1, $2) AS n
		ON CONFLICT (bus_id, seat_number) DO NOTHING`

	if _, err := q.ExecContext(ctx, query, busID, count); err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}
	return nil
}
