package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/utils"
)

// AuditService records booking workflow events
type AuditService struct {
	repo    *database.AuditRepository
	enabled bool
}

// NewAuditService creates a new audit service. A disabled service drops every event.
func NewAuditService(repo *database.AuditRepository, enabled bool) *AuditService {
	return &AuditService{
		repo:    repo,
		enabled: enabled,
	}
}

// AuditEvent represents a booking event to be logged
type AuditEvent struct {
	UserID     *uuid.UUID             // Acting user
	Action     string                 // One of the models.Audit* actions
	EntityType string                 // "payment", "booking", "seat" or "ticket"
	EntityID   *uuid.UUID             // ID of the affected entity (can be nil)
	IPAddress  string                 // Client IP address
	UserAgent  string                 // Client user agent
	Details    map[string]interface{} // Additional details as JSONB
}

// LogHoldPlaced logs a seat hold with its new payment order
func (s *AuditService) LogHoldPlaced(ctx context.Context, userID, paymentID uuid.UUID, orderID string, seatID uuid.UUID, journeyDate models.Date, ipAddress, userAgent string) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditHoldPlaced,
		EntityType: "payment",
		EntityID:   &paymentID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"order_id":     orderID,
			"seat_id":      seatID,
			"journey_date": journeyDate.String(),
		},
	})
}

// LogHoldRejected logs a hold attempt that failed
func (s *AuditService) LogHoldRejected(ctx context.Context, userID uuid.UUID, seatID *uuid.UUID, reason, ipAddress, userAgent string) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditHoldRejected,
		EntityType: "seat",
		EntityID:   seatID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"reason": reason,
		},
	})
}

// LogOrderCancelled logs a checkout the client abandoned
func (s *AuditService) LogOrderCancelled(ctx context.Context, userID, paymentID uuid.UUID, orderID, ipAddress, userAgent string) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditOrderCancelled,
		EntityType: "payment",
		EntityID:   &paymentID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details: map[string]interface{}{
			"order_id": orderID,
		},
	})
}

// LogPaymentVerification logs the outcome of a checkout callback
func (s *AuditService) LogPaymentVerification(ctx context.Context, userID uuid.UUID, bookingID *uuid.UUID, orderID string, success bool, failureReason, ipAddress, userAgent string) error {
	details := map[string]interface{}{
		"order_id": orderID,
		"success":  success,
	}

	action := models.AuditPaymentVerified
	if !success {
		action = models.AuditPaymentRejected
		details["failure_reason"] = failureReason
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     action,
		EntityType: "booking",
		EntityID:   bookingID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogBookingCancelled logs a cancellation by the booking owner
func (s *AuditService) LogBookingCancelled(ctx context.Context, userID, bookingID uuid.UUID, ipAddress, userAgent string) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     models.AuditBookingCancelled,
		EntityType: "booking",
		EntityID:   &bookingID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})
}

// LogRefund logs a refund attempt and its outcome
func (s *AuditService) LogRefund(ctx context.Context, userID, bookingID uuid.UUID, success bool, amount int64, failureReason, ipAddress, userAgent string) error {
	details := map[string]interface{}{
		"success": success,
	}

	action := models.AuditRefundCompleted
	if success {
		details["amount"] = amount
	} else {
		action = models.AuditRefundFailed
		details["failure_reason"] = failureReason
	}

	return s.logEvent(ctx, AuditEvent{
		UserID:     &userID,
		Action:     action,
		EntityType: "booking",
		EntityID:   &bookingID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Details:    details,
	})
}

// LogTicketMarkedUsed logs a boarding scan by an admin
func (s *AuditService) LogTicketMarkedUsed(ctx context.Context, adminID, ticketID uuid.UUID, ipAddress, userAgent string) error {
	return s.logEvent(ctx, AuditEvent{
		UserID:     &adminID,
		Action:     models.AuditTicketMarkedUsed,
		EntityType: "ticket",
		EntityID:   &ticketID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
	})
}

// logEvent adds device info and writes to booking_audit_logs
func (s *AuditService) logEvent(ctx context.Context, event AuditEvent) error {
	if !s.enabled {
		return nil
	}

	details := event.Details
	if details == nil {
		details = make(map[string]interface{})
	}
	details["device_info"] = utils.ParseUserAgent(event.UserAgent)

	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	return s.repo.Log(ctx, &models.BookingAuditLog{
		UserID:     event.UserID,
		Action:     event.Action,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
		Details:    raw,
	})
}
