package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a gateway payment order
type PaymentStatus string

const (
	PaymentCreated  PaymentStatus = "CREATED"  // Order opened at the gateway, seat held
	PaymentSuccess  PaymentStatus = "SUCCESS"  // Signature verified and booking committed
	PaymentFailed   PaymentStatus = "FAILED"   // Abandoned or cancelled before verification
	PaymentRefunded PaymentStatus = "REFUNDED" // Gateway refund completed, booking removed
)

// CanTransitionTo reports whether the payment may move from s to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentCreated:
		return next == PaymentSuccess || next == PaymentFailed
	case PaymentFailed:
		// a late but valid verification still books the seat
		return next == PaymentSuccess
	case PaymentSuccess:
		return next == PaymentRefunded
	case PaymentRefunded:
		return false
	default:
		return false
	}
}

// IsFinal reports whether the payment can no longer produce a booking
func (s PaymentStatus) IsFinal() bool {
	switch s {
	case PaymentSuccess, PaymentRefunded:
		return true
	case PaymentCreated, PaymentFailed:
		return false
	default:
		return true
	}
}

// Payment records a gateway order and its outcome.
// Amount is fixed when the order is opened and never recomputed.
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	UserID           uuid.UUID     `json:"user_id" db:"user_id"`
	BookingID        *uuid.UUID    `json:"booking_id,omitempty" db:"booking_id"`
	SeatID           *uuid.UUID    `json:"seat_id,omitempty" db:"seat_id"`
	JourneyDate      *Date         `json:"journey_date,omitempty" db:"journey_date"`
	GatewayOrderID   string        `json:"order_id" db:"gateway_order_id"`
	GatewayPaymentID *string       `json:"payment_id,omitempty" db:"gateway_payment_id"`
	GatewaySignature *string       `json:"-" db:"gateway_signature"`
	Amount           int64         `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	Status           PaymentStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// MatchesSeat reports whether the order was opened for this seat and date.
// Orders without a recorded seat match anything.
func (p *Payment) MatchesSeat(seatID uuid.UUID, date Date) bool {
	if p.SeatID != nil && *p.SeatID != seatID {
		return false
	}
	if p.JourneyDate != nil && !p.JourneyDate.Equal(date) {
		return false
	}
	return true
}

// ============================================================================
// REQUEST / RESPONSE DTOs
// ============================================================================

// CreateOrderRequest starts a booking attempt: hold the seat and open a gateway order
type CreateOrderRequest struct {
	SeatID      string `json:"seat_id" binding:"required"`
	JourneyDate string `json:"journey_date" binding:"required"`
}

// CreateOrderResponse is returned to the checkout client
type CreateOrderResponse struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Amount        int64     `json:"amount"`
	AmountDisplay string    `json:"amount_display"`
	Currency      string    `json:"currency"`
	GatewayKeyID  string    `json:"key_id"`
	SeatID        uuid.UUID `json:"seat_id"`
	SeatNumber    string    `json:"seat_number"`
	JourneyDate   Date      `json:"journey_date"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}

// VerifyPaymentRequest carries the gateway checkout callback fields
type VerifyPaymentRequest struct {
	OrderID     string `json:"razorpay_order_id" binding:"required"`
	PaymentID   string `json:"razorpay_payment_id" binding:"required"`
	Signature   string `json:"razorpay_signature" binding:"required"`
	SeatID      string `json:"seat_id" binding:"required"`
	JourneyDate string `json:"journey_date"`
}

// PaymentStatusResponse is the public view of a payment order
type PaymentStatusResponse struct {
	OrderID       string        `json:"order_id"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	AmountDisplay string        `json:"amount_display"`
	Currency      string        `json:"currency"`
	BookingID     *uuid.UUID    `json:"booking_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ToStatusResponse builds the public view
func (p *Payment) ToStatusResponse() PaymentStatusResponse {
	return PaymentStatusResponse{
		OrderID:       p.GatewayOrderID,
		PaymentID:     p.GatewayPaymentID,
		Status:        p.Status,
		Amount:        p.Amount,
		AmountDisplay: FormatMinorUnits(p.Amount),
		Currency:      p.Currency,
		BookingID:     p.BookingID,
		CreatedAt:     p.CreatedAt,
	}
}
