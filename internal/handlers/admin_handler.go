package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-booking-backend/internal/services"
)

// JobRunner is the part of the cron service admins can drive by hand
type JobRunner interface {
	RunAbandonedOrdersNow()
	GetJobStatus() map[string]interface{}
}

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	jobs JobRunner
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(jobs JobRunner) *AdminHandler {
	return &AdminHandler{jobs: jobs}
}

var _ JobRunner = (*services.CronService)(nil)

// ===================================================================
// BACKGROUND JOBS
// ===================================================================

// GetJobStatus handles GET /api/v1/admin/jobs
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// RunAbandonedOrders handles POST /api/v1/admin/jobs/abandoned-orders/run.
// Marks lapsed CREATED payment orders FAILED without waiting for the schedule.
func (h *AdminHandler) RunAbandonedOrders(c *gin.Context) {
	h.jobs.RunAbandonedOrdersNow()
	c.JSON(http.StatusOK, gin.H{
		"message": "Abandoned payment order sweep completed",
	})
}
