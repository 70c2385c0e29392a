package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/smarttransit/bus-booking-backend/internal/utils"
	"github.com/smarttransit/bus-booking-backend/pkg/validator"
)

// PaymentHandler handles seat hold, checkout verification and payment order endpoints
type PaymentHandler struct {
	coordinator      *services.BookingCoordinatorService
	orderService     *services.PaymentOrderService
	rateLimitService *services.RateLimitService
	auditService     *services.AuditService
	refValidator     *validator.GatewayRefValidator
	logger           *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	coordinator *services.BookingCoordinatorService,
	orderService *services.PaymentOrderService,
	rateLimitService *services.RateLimitService,
	auditService *services.AuditService,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		coordinator:      coordinator,
		orderService:     orderService,
		rateLimitService: rateLimitService,
		auditService:     auditService,
		refValidator:     validator.NewGatewayRefValidator(),
		logger:           logger,
	}
}

// ============================================================================
// CREATE ORDER - POST /api/v1/payments/create-order
// ============================================================================

// CreateOrder holds a seat for a journey date and opens a gateway order
// @Summary Hold a seat and create a payment order
// @Description Holds the seat for 5 minutes and returns the gateway order to pay against
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CreateOrderRequest true "Seat and journey date"
// @Success 201 {object} models.CreateOrderResponse
// @Failure 400 {object} map[string]interface{} "Invalid seat id or journey date"
// @Failure 404 {object} map[string]interface{} "Seat not found"
// @Failure 409 {object} map[string]interface{} "Seat held or already booked"
// @Failure 429 {object} map[string]interface{} "Too many hold attempts"
// @Failure 502 {object} map[string]interface{} "Gateway error"
// @Router /payments/create-order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	seatID, err := uuid.Parse(req.SeatID)
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid seat id"))
		return
	}
	journeyDate, err := models.ParseDate(req.JourneyDate)
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidJourneyDate.WithMessage("%v", err))
		return
	}

	ctx := c.Request.Context()
	clientIP := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	if err := h.rateLimitService.CheckHoldRateLimit(ctx, userCtx.UserID); err != nil {
		if rateLimitErr, ok := err.(*services.RateLimitError); ok {
			h.safeLogHoldRejected(ctx, userCtx.UserID, &seatID, models.ErrRateLimited.Code, clientIP, userAgent)

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"code":        models.ErrRateLimited.Code,
				"message":     rateLimitErr.Message,
				"retry_after": rateLimitErr.RetryAfter,
				"type":        rateLimitErr.Type,
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	order, err := h.coordinator.CreateHoldAndOrder(ctx, userCtx.UserID, seatID, &journeyDate)
	if err != nil {
		h.safeLogHoldRejected(ctx, userCtx.UserID, &seatID, errorCode(err), clientIP, userAgent)
		respondError(c, h.logger, err)
		return
	}

	h.safeLogHoldPlaced(ctx, userCtx.UserID, order, clientIP, userAgent)
	c.JSON(http.StatusCreated, order)
}

// ============================================================================
// VERIFY PAYMENT - POST /api/v1/payments/verify
// ============================================================================

// Verify checks a checkout callback and commits the booking
// @Summary Verify payment and book the seat
// @Description Verifies the gateway signature and creates the booking atomically
// @Tags Payments
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.VerifyPaymentRequest true "Checkout callback"
// @Success 200 {object} models.BookingConfirmation
// @Failure 400 {object} map[string]interface{} "Invalid signature or mismatched seat"
// @Failure 404 {object} map[string]interface{} "Payment order or seat not found"
// @Failure 409 {object} map[string]interface{} "Seat already booked or payment already processed"
// @Failure 410 {object} map[string]interface{} "Seat hold expired"
// @Router /payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	input, err := h.parseVerifyRequest(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	clientIP := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	confirmation, err := h.coordinator.VerifyAndCommit(ctx, userCtx.UserID, *input)
	if err != nil {
		h.safeLogPaymentVerification(ctx, userCtx.UserID, nil, input.OrderID, false, errorCode(err), clientIP, userAgent)
		respondError(c, h.logger, err)
		return
	}

	h.safeLogPaymentVerification(ctx, userCtx.UserID, &confirmation.Booking.ID, input.OrderID, true, "", clientIP, userAgent)
	c.JSON(http.StatusOK, gin.H{
		"message":        "Payment verified and seat booked",
		"booking":        confirmation.Booking,
		"ticket_id":      confirmation.TicketID,
		"order_id":       confirmation.OrderID,
		"payment_status": confirmation.Status,
	})
}

// parseVerifyRequest validates the ids a client echoes back from checkout
func (h *PaymentHandler) parseVerifyRequest(req *models.VerifyPaymentRequest) (*services.VerifyPaymentInput, error) {
	orderID, err := h.refValidator.Validate(validator.RefOrder, req.OrderID)
	if err != nil {
		return nil, models.ErrInvalidInput.WithMessage("%v", err)
	}
	paymentID, err := h.refValidator.Validate(validator.RefPayment, req.PaymentID)
	if err != nil {
		return nil, models.ErrInvalidInput.WithMessage("%v", err)
	}
	signature, err := h.refValidator.ValidateSignature(req.Signature)
	if err != nil {
		return nil, models.ErrSignatureInvalid.Wrap(err)
	}
	seatID, err := uuid.Parse(req.SeatID)
	if err != nil {
		return nil, models.ErrInvalidInput.WithMessage("invalid seat id")
	}

	input := &services.VerifyPaymentInput{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
		SeatID:    seatID,
	}
	if req.JourneyDate != "" {
		journeyDate, err := models.ParseDate(req.JourneyDate)
		if err != nil {
			return nil, models.ErrInvalidJourneyDate.WithMessage("%v", err)
		}
		input.JourneyDate = &journeyDate
	}
	return input, nil
}

// ============================================================================
// PAYMENT STATUS - GET /api/v1/payments/status/:order_id
// ============================================================================

// Status returns one of the caller's payment orders
// @Summary Get payment status
// @Tags Payments
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param order_id path string true "Gateway order ID"
// @Success 200 {object} models.PaymentStatusResponse
// @Failure 404 {object} map[string]interface{} "Payment order not found"
// @Router /payments/status/{order_id} [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := h.refValidator.Validate(validator.RefOrder, c.Param("order_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("%v", err))
		return
	}

	payment, err := h.orderService.GetStatus(c.Request.Context(), orderID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, payment.ToStatusResponse())
}

// ============================================================================
// CANCEL ORDER - POST /api/v1/payments/:order_id/cancel
// ============================================================================

// Cancel abandons an unpaid order and releases its seat hold
// @Summary Cancel an unpaid payment order
// @Tags Payments
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param order_id path string true "Gateway order ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Payment order not found"
// @Failure 409 {object} map[string]interface{} "Payment already processed"
// @Router /payments/{order_id}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	orderID, err := h.refValidator.Validate(validator.RefOrder, c.Param("order_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("%v", err))
		return
	}

	ctx := c.Request.Context()
	payment, err := h.orderService.CancelOrder(ctx, orderID, userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogOrderCancelled(ctx, userCtx.UserID, payment, utils.GetRealIP(c), utils.GetUserAgent(c))
	c.JSON(http.StatusOK, gin.H{
		"message": "Payment order cancelled",
		"payment": payment.ToStatusResponse(),
	})
}

// ============================================================================
// MY PAYMENTS - GET /api/v1/payments/my
// ============================================================================

// My lists the caller's payment orders
// @Summary List my payments
// @Tags Payments
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} map[string]interface{}
// @Router /payments/my [get]
func (h *PaymentHandler) My(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	payments, err := h.orderService.ListForUser(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]models.PaymentStatusResponse, 0, len(payments))
	for i := range payments {
		response = append(response, payments[i].ToStatusResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": response,
		"count":    len(response),
	})
}
