package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"Not found", models.ErrSeatNotFound, http.StatusNotFound, "SEAT_NOT_FOUND"},
		{"Conflict", models.ErrSeatHeld, http.StatusConflict, "SEAT_HELD"},
		{"Invalid input", models.ErrInvalidJourneyDate.WithMessage("bad date"), http.StatusBadRequest, "INVALID_JOURNEY_DATE"},
		{"Unauthorized", models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"Gateway", models.ErrGateway.Wrap(errors.New("timeout")), http.StatusBadGateway, "GATEWAY_ERROR"},
		{"Expired", models.ErrHoldExpired, http.StatusGone, "HOLD_EXPIRED"},
		{"Rate limited", models.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"Wrapped", fmt.Errorf("verify: %w", models.ErrSeatAlreadyBooked), http.StatusConflict, "SEAT_ALREADY_BOOKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, testLogger(), tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.expectedCode, body["code"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, testLogger(), errors.New("pq: connection refused on 10.0.0.5"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Equal(t, "internal_error", decodeBody(t, w)["error"])
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NO_PAYMENT", errorCode(models.ErrNoPayment))
	assert.Equal(t, "INTERNAL_ERROR", errorCode(errors.New("boom")))
}
