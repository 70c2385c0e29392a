package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/stretchr/testify/require"
)

var (
	seatCols    = []string{"id", "bus_id", "seat_number", "is_booked", "is_held", "hold_expires_at", "held_by_payment_id", "updated_at"}
	busCols     = []string{"id", "bus_name", "number", "origin", "destination", "features", "start_time", "reach_time", "no_of_seats", "price", "created_at"}
	paymentCols = []string{"id", "user_id", "booking_id", "seat_id", "journey_date", "gateway_order_id", "gateway_payment_id", "gateway_signature", "amount", "currency", "status", "created_at", "updated_at"}
	bookingCols = []string{"id", "user_id", "bus_id", "seat_id", "journey_date", "booking_time"}
	ticketCols  = []string{"id", "booking_id", "user_id", "journey_date", "status", "created_at", "updated_at"}
)

// fakeGateway records calls and fails on demand
type fakeGateway struct {
	mu         sync.Mutex
	orderID    string
	createErr  error
	refundErr  error
	signatures map[string]bool
	refunds    []int64
	receipts   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orderID: "order_test123", signatures: map[string]bool{}}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receipts = append(g.receipts, receipt)
	if g.createErr != nil {
		return "", g.createErr
	}
	return g.orderID, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) error {
	if signature == "good" {
		return nil
	}
	return errors.New("signature mismatch")
}

func (g *fakeGateway) Refund(ctx context.Context, paymentID string, amount int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test" }

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []*BookingEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event *BookingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
}

// bookingFixture wires the booking services against one sqlmock database
// with a frozen clock
type bookingFixture struct {
	mock        sqlmock.Sqlmock
	now         time.Time
	gateway     *fakeGateway
	events      *recordingPublisher
	ledger      *SeatLedgerService
	orders      *PaymentOrderService
	tickets     *TicketService
	coordinator *BookingCoordinatorService
	refunds     *RefundService

	userID    uuid.UUID
	busID     uuid.UUID
	seatID    uuid.UUID
	paymentID uuid.UUID
	bookingID uuid.UUID
	ticketID  uuid.UUID
}

func newBookingFixture(t *testing.T) *bookingFixture {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")

	logger := quietLogger()
	now := time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	seatRepo := database.NewSeatRepository(db)
	busRepo := database.NewBusRepository(db)
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	ticketRepo := database.NewTicketRepository(db)

	gateway := newFakeGateway()
	events := &recordingPublisher{}

	ledger := NewSeatLedgerService(db, seatRepo, bookingRepo, logger)
	ledger.now = clock
	orders := NewPaymentOrderService(db, paymentRepo, seatRepo, ledger, gateway, logger)
	orders.now = clock
	tickets := NewTicketService(db, ticketRepo, bookingRepo, NewPDFTicketRenderer("http://localhost/api/v1"), time.UTC, logger)
	tickets.now = clock
	coordinator := NewBookingCoordinatorService(
		db, seatRepo, busRepo, bookingRepo, paymentRepo, ledger, orders, tickets, gateway, events,
		BookingCoordinatorConfig{Currency: "INR", Location: time.UTC}, logger,
	)
	coordinator.now = clock
	refunds := NewRefundService(db, bookingRepo, paymentRepo, seatRepo, busRepo, ticketRepo, ledger, tickets, gateway, events, logger)
	refunds.now = clock

	return &bookingFixture{
		mock:        mock,
		now:         now,
		gateway:     gateway,
		events:      events,
		ledger:      ledger,
		orders:      orders,
		tickets:     tickets,
		coordinator: coordinator,
		refunds:     refunds,
		userID:      uuid.New(),
		busID:       uuid.New(),
		seatID:      uuid.New(),
		paymentID:   uuid.New(),
		bookingID:   uuid.New(),
		ticketID:    uuid.New(),
	}
}

// seatRow returns the S101 seat; heldUntil nil means unheld
func (f *bookingFixture) seatRow(heldUntil *time.Time, heldBy *uuid.UUID) *sqlmock.Rows {
	var holder interface{}
	if heldBy != nil {
		holder = heldBy.String()
	}
	var expires interface{}
	if heldUntil != nil {
		expires = *heldUntil
	}
	return sqlmock.NewRows(seatCols).AddRow(
		f.seatID.String(), f.busID.String(), "S101", false, heldUntil != nil, expires, holder, f.now,
	)
}

func (f *bookingFixture) busRow() *sqlmock.Rows {
	return sqlmock.NewRows(busCols).AddRow(
		f.busID.String(), "Express", "NB-1234", "Colombo", "Kandy", "AC",
		"08:30:00", "11:45:00", 40, "500.00", f.now,
	)
}

func (f *bookingFixture) paymentRow(status, journeyDate string, bookingID *uuid.UUID, gatewayPaymentID interface{}) *sqlmock.Rows {
	var booking interface{}
	if bookingID != nil {
		booking = bookingID.String()
	}
	return sqlmock.NewRows(paymentCols).AddRow(
		f.paymentID.String(), f.userID.String(), booking, f.seatID.String(), journeyDate, "order_test123",
		gatewayPaymentID, nil, int64(50000), "INR", status, f.now, f.now,
	)
}

func (f *bookingFixture) bookingRow(journeyDate string) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(
		f.bookingID.String(), f.userID.String(), f.busID.String(), f.seatID.String(), journeyDate, f.now,
	)
}

func (f *bookingFixture) ticketRow(status, journeyDate string) *sqlmock.Rows {
	return sqlmock.NewRows(ticketCols).AddRow(
		f.ticketID.String(), f.bookingID.String(), f.userID.String(), journeyDate, status, f.now, f.now,
	)
}

func existsRow(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}
