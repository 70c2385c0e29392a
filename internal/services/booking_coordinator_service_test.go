package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smarttransit/bus-booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var journey = models.NewDate(2025, time.March, 1)

func dateRef(d models.Date) *models.Date { return &d }

// ============================================================================
// CREATE HOLD AND ORDER
// ============================================================================

func TestCreateHoldAndOrder_Success(t *testing.T) {
	f := newBookingFixture(t)

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WithArgs(f.seatID).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WithArgs(f.busID).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WithArgs(f.busID, f.seatID, "2025-03-01").WillReturnRows(existsRow(false))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO payments`).
		WithArgs(sqlmock.AnyArg(), f.userID, f.seatID, "2025-03-01", "order_test123", int64(50000), "INR", "CREATED").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(f.now, f.now))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_held = TRUE`).
		WithArgs(f.seatID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	resp, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))
	require.NoError(t, err)

	assert.Equal(t, "order_test123", resp.OrderID)
	assert.Equal(t, int64(50000), resp.Amount)
	assert.Equal(t, "500.00", resp.AmountDisplay)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test", resp.GatewayKeyID)
	assert.Equal(t, "S101", resp.SeatNumber)
	assert.True(t, resp.JourneyDate.Equal(journey))
	assert.Equal(t, f.now.Add(models.HoldDuration), resp.HoldExpiresAt)
	require.Len(t, f.gateway.receipts, 1)
	assert.Equal(t, resp.PaymentID.String(), f.gateway.receipts[0])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_SeatHeldByAnotherCustomer(t *testing.T) {
	f := newBookingFixture(t)
	heldUntil := f.now.Add(3 * time.Minute)
	other := uuid.New()

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(f.seatRow(&heldUntil, &other))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))

	_, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))

	assert.ErrorIs(t, err, models.ErrSeatHeld)
	assert.Empty(t, f.gateway.receipts, "no provider order for a held seat")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_ExpiredHoldIsReplaced(t *testing.T) {
	f := newBookingFixture(t)
	expired := f.now.Add(-time.Minute)
	other := uuid.New()

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(f.seatRow(&expired, &other))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).WillReturnRows(f.seatRow(&expired, &other))
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO payments`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(f.now, f.now))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_held = TRUE`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	resp, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))

	require.NoError(t, err)
	assert.Equal(t, f.now.Add(models.HoldDuration), resp.HoldExpiresAt)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_AlreadyBookedForDate(t *testing.T) {
	f := newBookingFixture(t)

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(true))

	_, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))

	assert.ErrorIs(t, err, models.ErrSeatAlreadyBooked)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_HeldBetweenPrecheckAndLock(t *testing.T) {
	f := newBookingFixture(t)
	heldUntil := f.now.Add(4 * time.Minute)
	other := uuid.New()

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).WillReturnRows(f.seatRow(&heldUntil, &other))
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO payments`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(f.now, f.now))
	f.mock.ExpectRollback()

	_, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))

	assert.ErrorIs(t, err, models.ErrSeatHeld)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_InvalidInput(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.coordinator.CreateHoldAndOrder(ctx, f.userID, f.seatID, nil)
	assert.ErrorIs(t, err, models.ErrInvalidJourneyDate)

	_, err = f.coordinator.CreateHoldAndOrder(ctx, f.userID, f.seatID, dateRef(models.NewDate(2025, time.February, 19)))
	assert.ErrorIs(t, err, models.ErrInvalidJourneyDate)

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(seatCols))
	_, err = f.coordinator.CreateHoldAndOrder(ctx, f.userID, f.seatID, dateRef(journey))
	assert.ErrorIs(t, err, models.ErrSeatNotFound)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateHoldAndOrder_TodayIsAllowed(t *testing.T) {
	f := newBookingFixture(t)
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(seatCols))

	_, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(models.DateOf(f.now)))

	// gets past date validation to the seat lookup
	assert.ErrorIs(t, err, models.ErrSeatNotFound)
}

func TestCreateHoldAndOrder_GatewayFailure(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.createErr = errors.New("503 from provider")

	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))

	_, err := f.coordinator.CreateHoldAndOrder(context.Background(), f.userID, f.seatID, dateRef(journey))

	assert.ErrorIs(t, err, models.ErrGateway)
	var bookingErr *models.BookingError
	require.True(t, errors.As(err, &bookingErr))
	assert.Equal(t, models.KindGateway, bookingErr.Kind)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "no transaction is opened when the gateway fails")
}

// ============================================================================
// VERIFY AND COMMIT
// ============================================================================

func (f *bookingFixture) verifyInput() VerifyPaymentInput {
	return VerifyPaymentInput{
		OrderID:     "order_test123",
		PaymentID:   "pay_test456",
		Signature:   "good",
		SeatID:      f.seatID,
		JourneyDate: dateRef(journey),
	}
}

func (f *bookingFixture) expectVerifyLocks(paymentStatus, paymentDate string, heldUntil *time.Time, heldBy *uuid.UUID) {
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2 FOR UPDATE`).
		WithArgs("order_test123", f.userID).
		WillReturnRows(f.paymentRow(paymentStatus, paymentDate, nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).
		WithArgs(f.seatID).
		WillReturnRows(f.seatRow(heldUntil, heldBy))
}

func TestVerifyAndCommit_Success(t *testing.T) {
	f := newBookingFixture(t)
	heldUntil := f.now.Add(2 * time.Minute)

	f.expectVerifyLocks("CREATED", "2025-03-01", &heldUntil, &f.paymentID)
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(sqlmock.AnyArg(), f.userID, f.busID, f.seatID, "2025-03-01").
		WillReturnRows(sqlmock.NewRows([]string{"booking_time"}).AddRow(f.now))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_booked = TRUE`).WithArgs(f.seatID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE payments\s+SET gateway_payment_id`).
		WithArgs(f.paymentID, "pay_test456", "good", sqlmock.AnyArg(), "SUCCESS").
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectExec(`INSERT INTO tickets`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`SELECT .* FROM tickets WHERE booking_id = \$1`).WillReturnRows(f.ticketRow("ACTIVE", "2025-03-01"))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())

	confirmation, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())
	require.NoError(t, err)

	assert.Equal(t, models.PaymentSuccess, confirmation.Status)
	assert.Equal(t, "order_test123", confirmation.OrderID)
	assert.Equal(t, f.seatID, confirmation.Booking.SeatID)
	assert.True(t, confirmation.Booking.JourneyDate.Equal(journey))
	require.NotNil(t, confirmation.TicketID)
	assert.Equal(t, f.ticketID, *confirmation.TicketID)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, TopicBookingConfirmed, f.events.topics[0])
	event := f.events.events[0]
	assert.Equal(t, confirmation.Booking.ID, event.BookingID)
	assert.Equal(t, "S101", event.SeatNumber)
	assert.Equal(t, "Express", event.BusName)
	assert.Equal(t, f.ticketID, *event.TicketID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerifyAndCommit_TicketFailureDoesNotUndoBooking(t *testing.T) {
	f := newBookingFixture(t)
	heldUntil := f.now.Add(2 * time.Minute)

	f.expectVerifyLocks("CREATED", "2025-03-01", &heldUntil, &f.paymentID)
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO bookings`).WillReturnRows(sqlmock.NewRows([]string{"booking_time"}).AddRow(f.now))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_booked = TRUE`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE payments\s+SET gateway_payment_id`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectExec(`INSERT INTO tickets`).WillReturnError(errors.New("connection reset"))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())

	confirmation, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

	require.NoError(t, err)
	assert.Nil(t, confirmation.TicketID)
	require.Len(t, f.events.events, 1)
	assert.Nil(t, f.events.events[0].TicketID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerifyAndCommit_InvalidSignature(t *testing.T) {
	f := newBookingFixture(t)
	input := f.verifyInput()
	input.Signature = "forged"

	_, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, input)

	assert.ErrorIs(t, err, models.ErrSignatureInvalid)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "nothing is read before the signature checks out")
}

func TestVerifyAndCommit_PaymentNotFound(t *testing.T) {
	f := newBookingFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`SELECT .* FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(paymentCols))
	f.mock.ExpectRollback()

	_, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerifyAndCommit_Rejections(t *testing.T) {
	heldElsewhere := uuid.New()

	tests := []struct {
		name          string
		paymentStatus string
		paymentDate   string
		heldFor       time.Duration
		heldByOther   bool
		alreadyBooked bool
		expected      error
	}{
		{"Seat already booked for date", "CREATED", "2025-03-01", 2 * time.Minute, false, true, models.ErrSeatAlreadyBooked},
		{"Payment already succeeded", "SUCCESS", "2025-03-01", 2 * time.Minute, false, false, models.ErrPaymentAlreadyProcessed},
		{"Payment already refunded", "REFUNDED", "2025-03-01", 2 * time.Minute, false, false, models.ErrPaymentAlreadyProcessed},
		{"Payment for another date", "CREATED", "2025-03-02", 2 * time.Minute, false, false, models.ErrPaymentSeatMismatch},
		{"Seat held by another payment", "CREATED", "2025-03-01", 2 * time.Minute, true, false, models.ErrSeatHeld},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			heldUntil := f.now.Add(tt.heldFor)
			holder := &f.paymentID
			if tt.heldByOther {
				holder = &heldElsewhere
			}

			f.expectVerifyLocks(tt.paymentStatus, tt.paymentDate, &heldUntil, holder)
			f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(tt.alreadyBooked))
			f.mock.ExpectRollback()

			_, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, f.events.events)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestVerifyAndCommit_HoldExpired(t *testing.T) {
	f := newBookingFixture(t)
	expired := f.now.Add(-30 * time.Second)

	f.expectVerifyLocks("CREATED", "2025-03-01", &expired, &f.paymentID)
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_held = FALSE`).WithArgs(f.seatID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()

	_, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

	assert.ErrorIs(t, err, models.ErrHoldExpired)
	var bookingErr *models.BookingError
	require.True(t, errors.As(err, &bookingErr))
	assert.Equal(t, models.KindExpired, bookingErr.Kind)
	assert.Empty(t, f.events.events)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "the cleared hold is committed")
}

func TestVerifyAndCommit_UniqueViolationIsConflict(t *testing.T) {
	f := newBookingFixture(t)
	heldUntil := f.now.Add(time.Minute)

	f.expectVerifyLocks("CREATED", "2025-03-01", &heldUntil, &f.paymentID)
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO bookings`).WillReturnError(&pq.Error{
		Code:       "23505",
		Constraint: "bookings_bus_seat_date_key",
	})
	f.mock.ExpectRollback()

	_, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

	assert.ErrorIs(t, err, models.ErrSeatAlreadyBooked)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// ============================================================================
// CANCEL
// ============================================================================

func TestCancelBooking_Success(t *testing.T) {
	f := newBookingFixture(t)

	f.mock.ExpectQuery(`SELECT .* FROM bookings\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs(f.bookingID, f.userID).
		WillReturnRows(f.bookingRow("2025-03-01"))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM payments\s+WHERE booking_id = \$1 AND user_id = \$2 AND status = \$3 .* FOR UPDATE`).
		WillReturnRows(f.paymentRow("SUCCESS", "2025-03-01", &f.bookingID, "pay_test456"))
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM bookings\s+WHERE id = \$1 AND user_id = \$2`).WillReturnRows(f.bookingRow("2025-03-01"))
	f.mock.ExpectExec(`DELETE FROM bookings WHERE id = \$1`).WithArgs(f.bookingID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE seats SET is_booked = FALSE`).WithArgs(f.seatID).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())

	result, err := f.coordinator.CancelBooking(context.Background(), f.userID, f.bookingID)
	require.NoError(t, err)

	assert.Equal(t, f.bookingID, result.BookingID)
	assert.Equal(t, "S101", result.SeatNumber)
	assert.Equal(t, f.now, result.CancelledAt)
	require.Len(t, f.events.topics, 1)
	assert.Equal(t, TopicBookingCancelled, f.events.topics[0])
	assert.Equal(t, "Colombo", f.events.events[0].Origin)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCancelBooking_OtherUsersBooking(t *testing.T) {
	f := newBookingFixture(t)
	stranger := uuid.New()

	f.mock.ExpectQuery(`SELECT .* FROM bookings`).
		WithArgs(f.bookingID, stranger).
		WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err := f.coordinator.CancelBooking(context.Background(), stranger, f.bookingID)

	assert.ErrorIs(t, err, models.ErrBookingNotFound)
	assert.Empty(t, f.events.events)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestVerifyAndCommit_LateCallbackOnFailedOrderStillBooks(t *testing.T) {
	f := newBookingFixture(t)

	// the sweeper failed the order and its hold lapsed without another buyer
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`FROM payments WHERE gateway_order_id = \$1 AND user_id = \$2 FOR UPDATE`).
		WillReturnRows(f.paymentRow("FAILED", "2025-03-01", nil, nil))
	f.mock.ExpectQuery(`SELECT .* FROM seats WHERE id = \$1 FOR UPDATE`).WillReturnRows(f.seatRow(nil, nil))
	f.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(existsRow(false))
	f.mock.ExpectQuery(`INSERT INTO bookings`).WillReturnRows(sqlmock.NewRows([]string{"booking_time"}).AddRow(f.now))
	f.mock.ExpectExec(`UPDATE seats\s+SET is_booked = TRUE`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE payments\s+SET gateway_payment_id`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectCommit()
	f.mock.ExpectExec(`INSERT INTO tickets`).WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(`FROM tickets WHERE booking_id = \$1`).WillReturnRows(f.ticketRow("ACTIVE", "2025-03-01"))
	f.mock.ExpectQuery(`SELECT .* FROM buses`).WillReturnRows(f.busRow())

	confirmation, err := f.coordinator.VerifyAndCommit(context.Background(), f.userID, f.verifyInput())

	require.NoError(t, err)
	assert.Equal(t, models.PaymentSuccess, confirmation.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}
