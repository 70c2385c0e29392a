package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// TicketRepository handles ticket database operations
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, booking_id, user_id, journey_date, status, created_at, updated_at`

// GetOrCreate returns the booking's ticket, inserting an ACTIVE one if missing.
// The journey date is copied from the booking row.
func (r *TicketRepository) GetOrCreate(ctx context.Context, q Queryer, bookingID, userID uuid.UUID) (*models.Ticket, error) {
	insert := `
		INSERT INTO tickets (id, booking_id, user_id, journey_date, status)
		SELECT $1, bk.id, bk.user_id, bk.journey_date, $4
		FROM bookings bk
		WHERE bk.id = $2 AND bk.user_id = $3
		ON CONFLICT (booking_id) DO NOTHING`

	if _, err := q.ExecContext(ctx, insert, uuid.New(), bookingID, userID, models.TicketActive); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	ticket, err := r.GetByBookingID(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("failed to create ticket: booking %s no longer exists", bookingID)
	}
	return ticket, nil
}

// GetByBookingID returns the booking's ticket or nil
func (r *TicketRepository) GetByBookingID(ctx context.Context, q Queryer, bookingID uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = $1`
	return r.getOne(ctx, q, query, bookingID)
}

// GetByID returns a ticket or nil
func (r *TicketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.getOne(ctx, r.db, query, ticketID)
}

func (r *TicketRepository) getOne(ctx context.Context, q Queryer, query string, args ...interface{}) (*models.Ticket, error) {
	var ticket models.Ticket
	err := q.GetContext(ctx, &ticket, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// GetDetails joins a ticket with its booking, bus, seat, passenger and payment.
// Returns nil when the ticket or its booking is gone.
func (r *TicketRepository) GetDetails(ctx context.Context, ticketID uuid.UUID) (*models.TicketDetails, error) {
	query := `
		SELECT t.id AS ticket_id, t.status, bk.id AS booking_id, bk.journey_date,
		       u.username AS passenger_name, u.email,
		       b.bus_name, b.number AS bus_number, b.origin, b.destination,
		       b.start_time, b.reach_time, s.seat_number,
		       p.amount, p.currency
		FROM tickets t
		JOIN bookings bk ON bk.id = t.booking_id
		JOIN buses b ON b.id = bk.bus_id
		JOIN seats s ON s.id = bk.seat_id
		JOIN users u ON u.id = bk.user_id
		LEFT JOIN payments p ON p.booking_id = bk.id AND p.status = 'SUCCESS'
		WHERE t.id = $1`

	var details models.TicketDetails
	err := r.db.GetContext(ctx, &details, query, ticketID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket details: %w", err)
	}
	return &details, nil
}

// MarkUsed moves an ACTIVE ticket to USED. Returns nil when the ticket
// is missing or not ACTIVE.
func (r *TicketRepository) MarkUsed(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + ticketColumns

	return r.getOne(ctx, r.db, query, ticketID, models.TicketUsed, models.TicketActive)
}

// MarkRefunded sets REFUNDED and detaches the ticket so it outlives its booking
func (r *TicketRepository) MarkRefunded(ctx context.Context, q Queryer, ticketID uuid.UUID) error {
	query := `
		UPDATE tickets
		SET status = $2, booking_id = NULL, updated_at = NOW()
		WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, ticketID, models.TicketRefunded); err != nil {
		return fmt.Errorf("failed to mark ticket refunded: %w", err)
	}
	return nil
}
