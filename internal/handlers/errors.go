package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// statusForKind maps a booking error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindInvalidInput:
		return http.StatusBadRequest
	case models.KindUnauthorized:
		return http.StatusForbidden
	case models.KindGateway:
		return http.StatusBadGateway
	case models.KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a BookingError as JSON. Anything else is logged and
// reported as a generic 500 so internals never reach the client.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var bookingErr *models.BookingError
	if errors.As(err, &bookingErr) {
		status := statusForKind(bookingErr.Kind)
		if bookingErr.Code == models.ErrRateLimited.Code {
			status = http.StatusTooManyRequests
		}
		if status >= http.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"path":  c.FullPath(),
				"code":  bookingErr.Code,
				"error": err.Error(),
			}).Error("Booking request failed")
		}
		c.JSON(status, gin.H{
			"error":   bookingErr.Kind,
			"code":    bookingErr.Code,
			"message": bookingErr.Message,
		})
		return
	}

	logger.WithFields(logrus.Fields{
		"path":  c.FullPath(),
		"error": err.Error(),
	}).Error("Unexpected error handling request")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "something went wrong, please try again",
	})
}

// errorCode returns the booking error code for audit records
func errorCode(err error) string {
	var bookingErr *models.BookingError
	if errors.As(err, &bookingErr) {
		return bookingErr.Code
	}
	return "INTERNAL_ERROR"
}
