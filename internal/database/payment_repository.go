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

// PaymentRepository handles payment order database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, booking_id, seat_id, journey_date, gateway_order_id,
		gateway_payment_id, gateway_signature, amount, currency, status, created_at, updated_at`

// ============================================================================
// CREATE
// ============================================================================

// Create inserts a payment row. ID and timestamps are filled in.
func (r *PaymentRepository) Create(ctx context.Context, q Queryer, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentCreated
	}

	query := `
		INSERT INTO payments (id, user_id, seat_id, journey_date, gateway_order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := q.QueryRowxContext(ctx, query,
		payment.ID, payment.UserID, payment.SeatID, payment.JourneyDate,
		payment.GatewayOrderID, payment.Amount, payment.Currency, payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ============================================================================
// READS
// ============================================================================

// GetByOrderIDForUser returns the user's payment for a gateway order, or nil
func (r *PaymentRepository) GetByOrderIDForUser(ctx context.Context, orderID string, userID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1 AND user_id = $2`
	return r.getOne(ctx, r.db, query, orderID, userID)
}

// LockByOrderIDForUser is GetByOrderIDForUser with an exclusive row lock
func (r *PaymentRepository) LockByOrderIDForUser(ctx context.Context, q Queryer, orderID string, userID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1 AND user_id = $2 FOR UPDATE`
	return r.getOne(ctx, q, query, orderID, userID)
}

// GetSuccessfulForBooking returns the SUCCESS payment that paid for a booking
func (r *PaymentRepository) GetSuccessfulForBooking(ctx context.Context, q Queryer, bookingID, userID uuid.UUID) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND user_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, q, query, bookingID, userID, models.PaymentSuccess)
}

// LockSuccessfulForBooking is GetSuccessfulForBooking with an exclusive row lock
func (r *PaymentRepository) LockSuccessfulForBooking(ctx context.Context, q Queryer, bookingID, userID uuid.UUID) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE booking_id = $1 AND user_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
	return r.getOne(ctx, q, query, bookingID, userID, models.PaymentSuccess)
}

// LockByID returns a payment by id holding an exclusive row lock
func (r *PaymentRepository) LockByID(ctx context.Context, q Queryer, paymentID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, q, query, paymentID)
}

// ListByUser returns a user's payments, newest first
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`

	payments := []models.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *PaymentRepository) getOne(ctx context.Context, q Queryer, query string, args ...interface{}) (*models.Payment, error) {
	var payment models.Payment
	err := q.GetContext(ctx, &payment, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// ============================================================================
// STATUS TRANSITIONS
// ============================================================================

// MarkSuccess records the verified gateway payment and links the booking
func (r *PaymentRepository) MarkSuccess(ctx context.Context, q Queryer, paymentID uuid.UUID, gatewayPaymentID, signature string, bookingID uuid.UUID) error {
	query := `
		UPDATE payments
		SET gateway_payment_id = $2, gateway_signature = $3, booking_id = $4,
		    status = $5, updated_at = NOW()
		WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, paymentID, gatewayPaymentID, signature, bookingID, models.PaymentSuccess); err != nil {
		return fmt.Errorf("failed to mark payment successful: %w", err)
	}
	return nil
}

// UpdateStatus sets the payment status
func (r *PaymentRepository) UpdateStatus(ctx context.Context, q Queryer, paymentID uuid.UUID, status models.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`

	if _, err := q.ExecContext(ctx, query, paymentID, status); err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return nil
}

// MarkAbandonedFailed moves CREATED orders opened before cutoff to FAILED
func (r *PaymentRepository) MarkAbandonedFailed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND created_at < $3`

	result, err := r.db.ExecContext(ctx, query, models.PaymentFailed, models.PaymentCreated, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned payments: %w", err)
	}
	return result.RowsAffected()
}
