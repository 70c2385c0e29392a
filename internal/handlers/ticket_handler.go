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
)

// TicketHandler handles ticket scanning and boarding endpoints
type TicketHandler struct {
	ticketService *services.TicketService
	auditService  *services.AuditService
	logger        *logrus.Logger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(ticketService *services.TicketService, auditService *services.AuditService, logger *logrus.Logger) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		auditService:  auditService,
		logger:        logger,
	}
}

// verificationStatus maps a failed check to the status of the matching error kind
func verificationStatus(result *models.TicketVerification) int {
	if result.Valid {
		return http.StatusOK
	}
	switch result.Reason {
	case models.ReasonNotFound:
		return http.StatusNotFound
	case models.ReasonExpired:
		return http.StatusGone
	case models.ReasonUnverifiable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusConflict
	}
}

// ============================================================================
// VERIFY TICKET - GET /api/v1/tickets/verify/:ticket_id
// ============================================================================

// Verify checks a scanned ticket without changing it
// @Summary Verify a ticket
// @Description Public endpoint behind the QR code printed on every ticket
// @Tags Tickets
// @Produce json
// @Param ticket_id path string true "Ticket ID"
// @Success 200 {object} models.TicketVerification
// @Failure 404 {object} models.TicketVerification "Ticket not found"
// @Failure 409 {object} models.TicketVerification "Refunded or already used"
// @Failure 410 {object} models.TicketVerification "Bus already departed"
// @Failure 422 {object} models.TicketVerification "Departure time unknown"
// @Router /tickets/verify/{ticket_id} [get]
func (h *TicketHandler) Verify(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("ticket_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, &models.TicketVerification{
			Reason:  models.ReasonNotFound,
			Message: "Ticket not found",
		})
		return
	}

	result, err := h.ticketService.Verify(c.Request.Context(), ticketID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(verificationStatus(result), result)
}

// ============================================================================
// MARK USED - POST /api/v1/tickets/mark-used/:ticket_id (admin)
// ============================================================================

// MarkUsed redeems a ticket at boarding
// @Summary Mark ticket as used
// @Tags Tickets
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param ticket_id path string true "Ticket ID"
// @Success 200 {object} models.Ticket
// @Failure 403 {object} map[string]interface{} "Admin role required"
// @Failure 404 {object} map[string]interface{} "Ticket not found"
// @Failure 409 {object} map[string]interface{} "Already used or refunded"
// @Router /tickets/mark-used/{ticket_id} [post]
func (h *TicketHandler) MarkUsed(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ticketID, err := uuid.Parse(c.Param("ticket_id"))
	if err != nil {
		respondError(c, h.logger, models.ErrInvalidInput.WithMessage("invalid ticket id"))
		return
	}

	ctx := c.Request.Context()
	ticket, err := h.ticketService.MarkUsed(ctx, ticketID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.safeLogTicketMarkedUsed(ctx, userCtx.UserID, ticketID, utils.GetRealIP(c), utils.GetUserAgent(c))
	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket marked as used",
		"ticket":  ticket,
	})
}
