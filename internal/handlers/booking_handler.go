package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/smarttransit/bus-booking-backend/internal/utils"
)

// BookingHandler handles booking, refund, ticket download and availability endpoints
type BookingHandler struct {
	coordinator   *services.BookingCoordinatorService
	refundService *services.RefundService
	ticketService *services.TicketService
	ledger        *services.SeatLedgerService
	auditService  *services.AuditService
	logger        *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	coordinator *services.BookingCoordinatorService,
	refundService *services.RefundService,
	ticketService *services.TicketService,
	ledger *services.SeatLedgerService,
	auditService *services.AuditService,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		coordinator:   coordinator,
		refundService: refundService,
		ticketService: ticketService,
		ledger:        ledger,
		auditService:  auditService,
		logger:        logger,
	}
}

// ============================================================================
// CANCEL BOOKING - POST /api/v1/bookings/cancel
// ============================================================================

// Cancel deletes one of the caller's bookings without a refund
// @Summary Cancel a booking
// @Description Frees the seat for its journey date. Use the refund endpoint to get money back.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CancelBookingRequest true "Booking to cancel"
// @Success 200 {object} models.CancelResult
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /bookings/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid booking id"))
		return
	}

	ctx := c.Request.Context()
	result, err := h.coordinator.CancelBooking(ctx, userCtx.UserID, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogBookingCancelled(ctx, userCtx.UserID, bookingID, utils.GetRealIP(c), utils.GetUserAgent(c))
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": result,
	})
}

// ============================================================================
// MY BOOKINGS - GET /api/v1/bookings/my
// ============================================================================

// My lists the caller's bookings
// @Summary List my bookings
// @Tags Bookings
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} map[string]interface{}
// @Router /bookings/my [get]
func (h *BookingHandler) My(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	bookings, err := h.coordinator.ListForUser(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []models.BookingSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": bookings,
		"count":    len(bookings),
	})
}

// ============================================================================
// REFUND - POST /api/v1/bookings/:booking_id/refund
// ============================================================================

// Refund refunds a paid booking through the gateway
// @Summary Refund a booking
// @Tags Bookings
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param booking_id path string true "Booking ID"
// @Success 200 {object} models.RefundResult
// @Failure 404 {object} map[string]interface{} "Booking or payment not found"
// @Failure 409 {object} map[string]interface{} "Already refunded"
// @Failure 502 {object} map[string]interface{} "Gateway refund failed"
// @Router /bookings/{booking_id}/refund [post]
func (h *BookingHandler) Refund(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid booking id"))
		return
	}

	ctx := c.Request.Context()
	clientIP := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	result, err := h.refundService.Refund(ctx, userCtx.UserID, bookingID)
	if err != nil {
		h.safeLogRefund(ctx, userCtx.UserID, bookingID, false, 0, errorCode(err), clientIP, userAgent)
		respondError(c, h.logger, err)
		return
	}

	h.safeLogRefund(ctx, userCtx.UserID, bookingID, true, result.Amount, "", clientIP, userAgent)
	c.JSON(http.StatusOK, gin.H{
		"message": "Refund processed",
		"refund":  result,
	})
}

// ============================================================================
// TICKET DOWNLOAD - GET /api/v1/bookings/:booking_id/ticket
// ============================================================================

// Ticket downloads the PDF ticket for one of the caller's bookings
// @Summary Download ticket
// @Tags Bookings
// @Produce application/pdf
// @Param Authorization header string true "Bearer token"
// @Param booking_id path string true "Booking ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Router /bookings/{booking_id}/ticket [get]
func (h *BookingHandler) Ticket(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	bookingID, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid booking id"))
		return
	}

	artifact, err := h.ticketService.GetArtifact(c.Request.Context(), bookingID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// ============================================================================
// SEAT AVAILABILITY - GET /api/v1/buses/:bus_id/availability?journey_date=
// ============================================================================

// Availability lists seats of a bus with their state on a journey date
// @Summary Seat availability
// @Tags Buses
// @Produce json
// @Param bus_id path string true "Bus ID"
// @Param journey_date query string true "Journey date (YYYY-MM-DD)"
// @Success 200 {object} models.BusAvailabilityResponse
// @Failure 400 {object} map[string]interface{} "Invalid bus id or date"
// @Router /buses/{bus_id}/availability [get]
func (h *BookingHandler) Availability(c *gin.Context) {
	busID, err := uuid.Parse(c.Param("bus_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid bus id"))
		return
	}

	journeyDate, err := models.ParseDate(c.Query("journey_date"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidJourneyDate.WithMessage("%v", err))
		return
	}

	availability, err := h.ledger.SeatAvailability(c.Request.Context(), busID, journeyDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}
