package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded for the booking workflow
const (
	AuditHoldPlaced       = "hold_placed"
	AuditHoldRejected     = "hold_rejected"
	AuditOrderCancelled   = "order_cancelled"
	AuditPaymentVerified  = "payment_verified"
	AuditPaymentRejected  = "payment_rejected"
	AuditBookingCancelled = "booking_cancelled"
	AuditRefundCompleted  = "refund_completed"
	AuditRefundFailed     = "refund_failed"
	AuditTicketMarkedUsed = "ticket_marked_used"
)

// BookingAuditLog is one row of booking_audit_logs
type BookingAuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty" db:"entity_id"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	Details    json.RawMessage `json:"details" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
