package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/middleware"
	"github.com/smarttransit/bus-booking-backend/internal/services"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a mock database for testing
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, topic string, event *services.BookingEvent) {}

// testServices wires every handler dependency against one mock database
type testServices struct {
	coordinator *services.BookingCoordinatorService
	orders      *services.PaymentOrderService
	ledger      *services.SeatLedgerService
	tickets     *services.TicketService
	refunds     *services.RefundService
	rateLimit   *services.RateLimitService
	audit       *services.AuditService
}

func setupTestServices(db *sqlx.DB) *testServices {
	logger := testLogger()

	seatRepo := database.NewSeatRepository(db)
	busRepo := database.NewBusRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	ticketRepo := database.NewTicketRepository(db)

	gateway := services.NewSandboxGateway("rzp_test", "test-secret", logger)
	ledger := services.NewSeatLedgerService(db, seatRepo, bookingRepo, logger)
	orders := services.NewPaymentOrderService(db, paymentRepo, seatRepo, ledger, gateway, logger)
	tickets := services.NewTicketService(db, ticketRepo, bookingRepo, services.NewPDFTicketRenderer("http://localhost:8080/api/v1"), time.UTC, logger)
	events := nopPublisher{}

	coordinator := services.NewBookingCoordinatorService(
		db, seatRepo, busRepo, bookingRepo, paymentRepo, ledger, orders, tickets, gateway, events,
		services.BookingCoordinatorConfig{Currency: "INR", Location: time.UTC}, logger,
	)
	refunds := services.NewRefundService(db, bookingRepo, paymentRepo, seatRepo, busRepo, ticketRepo, ledger, tickets, gateway, events, logger)

	return &testServices{
		coordinator: coordinator,
		orders:      orders,
		ledger:      ledger,
		tickets:     tickets,
		refunds:     refunds,
		rateLimit:   services.NewRateLimitService(nil, services.DefaultRateLimitConfig(), logger),
		audit:       services.NewAuditService(nil, false),
	}
}

// withUser simulates AuthMiddleware for the wrapped handler
func withUser(userID uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{
			UserID:   userID,
			Username: "nimal",
			Roles:    roles,
		})
		c.Next()
	}
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
