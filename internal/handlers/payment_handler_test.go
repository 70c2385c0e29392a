package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var paymentRowColumns = []string{
	"id", "user_id", "booking_id", "seat_id", "journey_date", "gateway_order_id",
	"gateway_payment_id", "gateway_signature", "amount", "currency", "status", "created_at", "updated_at",
}

func setupPaymentRouter(t *testing.T, userID *uuid.UUID) (*PaymentHandler, sqlmock.Sqlmock, func(method, path string, body interface{}) map[string]interface{}, func(method, path string, body interface{}) int) {
	db, mock := setupTestDB(t)
	svc := setupTestServices(db)
	handler := NewPaymentHandler(svc.coordinator, svc.orders, svc.rateLimit, svc.audit, testLogger())

	router := setupTestRouter()
	group := router.Group("/api/v1/payments")
	if userID != nil {
		group.Use(withUser(*userID, "passenger"))
	}
	group.POST("/create-order", handler.CreateOrder)
	group.POST("/verify", handler.Verify)
	group.GET("/status/:order_id", handler.Status)
	group.POST("/:order_id/cancel", handler.Cancel)
	group.GET("/my", handler.My)

	var last int
	call := func(method, path string, body interface{}) map[string]interface{} {
		w := doJSON(router, method, path, body)
		last = w.Code
		return decodeBody(t, w)
	}
	status := func(method, path string, body interface{}) int {
		call(method, path, body)
		return last
	}
	return handler, mock, call, status
}

func TestCreateOrder_Unauthenticated(t *testing.T) {
	_, _, _, status := setupPaymentRouter(t, nil)

	code := status("POST", "/api/v1/payments/create-order", map[string]string{
		"seat_id":      uuid.NewString(),
		"journey_date": "2099-01-01",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateOrder_InvalidInput(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name         string
		body         map[string]string
		expectedCode string
	}{
		{"Invalid seat id", map[string]string{"seat_id": "S101", "journey_date": "2099-01-01"}, "INVALID_INPUT"},
		{"Malformed date", map[string]string{"seat_id": uuid.NewString(), "journey_date": "01/03/2099"}, "INVALID_JOURNEY_DATE"},
		{"Past date", map[string]string{"seat_id": uuid.NewString(), "journey_date": "2020-01-01"}, "INVALID_JOURNEY_DATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mock, call, _ := setupPaymentRouter(t, &userID)

			body := call("POST", "/api/v1/payments/create-order", tt.body)
			assert.Equal(t, tt.expectedCode, body["code"])
			assert.Equal(t, "invalid_input", body["error"])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateOrder_MissingFields(t *testing.T) {
	userID := uuid.New()
	_, _, _, status := setupPaymentRouter(t, &userID)

	code := status("POST", "/api/v1/payments/create-order", map[string]string{"seat_id": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateOrder_SeatNotFound(t *testing.T) {
	userID := uuid.New()
	_, mock, call, _ := setupPaymentRouter(t, &userID)

	mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body := call("POST", "/api/v1/payments/create-order", map[string]string{
		"seat_id":      uuid.NewString(),
		"journey_date": "2099-01-01",
	})
	assert.Equal(t, "SEAT_NOT_FOUND", body["code"])
	assert.Equal(t, "not_found", body["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerify_RejectsBadCallback(t *testing.T) {
	userID := uuid.New()
	validSignature := services.ComputeSignature("test-secret", "order_abc", "pay_abc")

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Malformed signature",
			body: map[string]string{
				"razorpay_order_id": "order_abc", "razorpay_payment_id": "pay_abc",
				"razorpay_signature": "nothex", "seat_id": uuid.NewString(), "journey_date": "2099-01-01",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "SIGNATURE_INVALID",
		},
		{
			name: "Signature for another payment",
			body: map[string]string{
				"razorpay_order_id": "order_abc", "razorpay_payment_id": "pay_other",
				"razorpay_signature": validSignature, "seat_id": uuid.NewString(), "journey_date": "2099-01-01",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "SIGNATURE_INVALID",
		},
		{
			name: "Invalid order id",
			body: map[string]string{
				"razorpay_order_id": "order-abc", "razorpay_payment_id": "pay_abc",
				"razorpay_signature": validSignature, "seat_id": uuid.NewString(), "journey_date": "2099-01-01",
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_INPUT",
		},
		{
			name: "Missing journey date",
			body: map[string]string{
				"razorpay_order_id": "order_abc", "razorpay_payment_id": "pay_abc",
				"razorpay_signature": validSignature, "seat_id": uuid.NewString(),
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_JOURNEY_DATE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mock, call, status := setupPaymentRouter(t, &userID)

			assert.Equal(t, tt.expectedStatus, status("POST", "/api/v1/payments/verify", tt.body))
			body := call("POST", "/api/v1/payments/verify", tt.body)
			assert.Equal(t, tt.expectedCode, body["code"])
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	userID := uuid.New()
	_, mock, call, _ := setupPaymentRouter(t, &userID)

	mock.ExpectQuery(`SELECT .* FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2`).
		WithArgs("order_missing", userID).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	body := call("GET", "/api/v1/payments/status/order_missing", nil)
	assert.Equal(t, "PAYMENT_NOT_FOUND", body["code"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus_Success(t *testing.T) {
	userID := uuid.New()
	_, mock, call, status := setupPaymentRouter(t, &userID)

	now := time.Now()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT .* FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2`).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
				uuid.New().String(), userID.String(), nil, uuid.New().String(), "2099-01-01", "order_abc",
				nil, nil, int64(50000), "INR", "CREATED", now, now,
			))
	}

	assert.Equal(t, http.StatusOK, status("GET", "/api/v1/payments/status/order_abc", nil))
	body := call("GET", "/api/v1/payments/status/order_abc", nil)
	assert.Equal(t, "order_abc", body["order_id"])
	assert.Equal(t, "CREATED", body["status"])
	assert.Equal(t, float64(50000), body["amount"])
	assert.Equal(t, "500.00", body["amount_display"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_InvalidOrderID(t *testing.T) {
	userID := uuid.New()
	_, mock, call, _ := setupPaymentRouter(t, &userID)

	body := call("POST", "/api/v1/payments/order-1/cancel", nil)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.True(t, strings.Contains(body["message"].(string), "order id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancel_AlreadyPaid(t *testing.T) {
	userID := uuid.New()
	_, mock, call, _ := setupPaymentRouter(t, &userID)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
			uuid.New().String(), userID.String(), uuid.New().String(), uuid.New().String(), "2099-01-01", "order_abc",
			"pay_abc", "sig", int64(50000), "INR", "SUCCESS", now, now,
		))
	mock.ExpectRollback()

	body := call("POST", "/api/v1/payments/order_abc/cancel", nil)
	assert.Equal(t, "PAYMENT_ALREADY_PROCESSED", body["code"])
	assert.Equal(t, "conflict", body["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMy_Empty(t *testing.T) {
	userID := uuid.New()
	_, mock, call, _ := setupPaymentRouter(t, &userID)

	mock.ExpectQuery(`SELECT .* FROM payments WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	body := call("GET", "/api/v1/payments/my", nil)
	require.Contains(t, body, "payments")
	assert.Equal(t, float64(0), body["count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
