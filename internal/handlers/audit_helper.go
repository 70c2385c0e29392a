package handlers

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// logAuditError is a helper to log audit service errors without failing the request
func logAuditError(operation string, err error) {
	if err != nil {
		log.Printf("AUDIT ERROR [%s]: %v", operation, err)
	}
}

// Helper functions to log audit events with error handling

func (h *PaymentHandler) safeLogHoldPlaced(ctx context.Context, userID uuid.UUID, order *models.CreateOrderResponse, ipAddress, userAgent string) {
	if err := h.auditService.LogHoldPlaced(ctx, userID, order.PaymentID, order.OrderID, order.SeatID, order.JourneyDate, ipAddress, userAgent); err != nil {
		logAuditError("LogHoldPlaced", err)
	}
}

func (h *PaymentHandler) safeLogHoldRejected(ctx context.Context, userID uuid.UUID, seatID *uuid.UUID, reason, ipAddress, userAgent string) {
	if err := h.auditService.LogHoldRejected(ctx, userID, seatID, reason, ipAddress, userAgent); err != nil {
		logAuditError("LogHoldRejected", err)
	}
}

func (h *PaymentHandler) safeLogOrderCancelled(ctx context.Context, userID uuid.UUID, payment *models.Payment, ipAddress, userAgent string) {
	if err := h.auditService.LogOrderCancelled(ctx, userID, payment.ID, payment.GatewayOrderID, ipAddress, userAgent); err != nil {
		logAuditError("LogOrderCancelled", err)
	}
}

func (h *PaymentHandler) safeLogPaymentVerification(ctx context.Context, userID uuid.UUID, bookingID *uuid.UUID, orderID string, success bool, failureReason, ipAddress, userAgent string) {
	if err := h.auditService.LogPaymentVerification(ctx, userID, bookingID, orderID, success, failureReason, ipAddress, userAgent); err != nil {
		logAuditError("LogPaymentVerification", err)
	}
}

func (h *BookingHandler) safeLogBookingCancelled(ctx context.Context, userID, bookingID uuid.UUID, ipAddress, userAgent string) {
	if err := h.auditService.LogBookingCancelled(ctx, userID, bookingID, ipAddress, userAgent); err != nil {
		logAuditError("LogBookingCancelled", err)
	}
}

func (h *BookingHandler) safeLogRefund(ctx context.Context, userID, bookingID uuid.UUID, success bool, amount int64, failureReason, ipAddress, userAgent string) {
	if err := h.auditService.LogRefund(ctx, userID, bookingID, success, amount, failureReason, ipAddress, userAgent); err != nil {
		logAuditError("LogRefund", err)
	}
}

func (h *TicketHandler) safeLogTicketMarkedUsed(ctx context.Context, adminID, ticketID uuid.UUID, ipAddress, userAgent string) {
	if err := h.auditService.LogTicketMarkedUsed(ctx, adminID, ticketID, ipAddress, userAgent); err != nil {
		logAuditError("LogTicketMarkedUsed", err)
	}
}
