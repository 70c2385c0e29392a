package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// BookingCoordinatorConfig holds settings for the booking flow
type BookingCoordinatorConfig struct {
	Currency string
	Location *time.Location // zone that decides what "today" is
}

// VerifyPaymentInput is a checkout callback after parsing
type VerifyPaymentInput struct {
	OrderID     string
	PaymentID   string
	Signature   string
	SeatID      uuid.UUID
	JourneyDate *models.Date
}

// BookingCoordinatorService drives a seat from hold to committed booking.
//
// Flow:
//  1. CreateHoldAndOrder: price the seat, open a gateway order, hold the seat for that order
//  2. Client pays at the gateway
//  3. VerifyAndCommit: check the signature, then create the booking atomically
//  4. Ticket issuance and notifications run after commit and never undo it
type BookingCoordinatorService struct {
	db       *sqlx.DB
	seats    *database.SeatRepository
	buses    *database.BusRepository
	bookings *database.BookingRepository
	payments *database.PaymentRepository
	ledger   *SeatLedgerService
	orders   *PaymentOrderService
	tickets  *TicketService
	gateway  PaymentGateway
	events   EventPublisher
	config   BookingCoordinatorConfig
	logger   *logrus.Logger
	now      func() time.Time
}

// NewBookingCoordinatorService creates a new BookingCoordinatorService
func NewBookingCoordinatorService(
	db *sqlx.DB,
	seats *database.SeatRepository,
	buses *database.BusRepository,
	bookings *database.BookingRepository,
	payments *database.PaymentRepository,
	ledger *SeatLedgerService,
	orders *PaymentOrderService,
	tickets *TicketService,
	gateway PaymentGateway,
	events EventPublisher,
	config BookingCoordinatorConfig,
	logger *logrus.Logger,
) *BookingCoordinatorService {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &BookingCoordinatorService{
		db:       db,
		seats:    seats,
		buses:    buses,
		bookings: bookings,
		payments: payments,
		ledger:   ledger,
		orders:   orders,
		tickets:  tickets,
		gateway:  gateway,
		events:   events,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// validateJourneyDate rejects missing dates and dates before today
func (s *BookingCoordinatorService) validateJourneyDate(date *models.Date) error {
	if date == nil || date.IsZero() {
		return models.ErrInvalidJourneyDate
	}
	today := models.DateOf(s.now().In(s.config.Location))
	if date.Before(today) {
		return models.ErrInvalidJourneyDate.WithMessage("journey date %s is in the past", date)
	}
	return nil
}

// ============================================================================
// HOLD + ORDER
// ============================================================================

// CreateHoldAndOrder holds a seat for a journey date and opens a gateway
// order for the bus fare. The amount is fixed here and never recomputed.
func (s *BookingCoordinatorService) CreateHoldAndOrder(ctx context.Context, userID, seatID uuid.UUID, journeyDate *models.Date) (*models.CreateOrderResponse, error) {
	if err := s.validateJourneyDate(journeyDate); err != nil {
		return nil, err
	}

	seat, err := s.seats.GetByID(ctx, seatID)
	if err != nil {
		return nil, err
	}
	if seat == nil {
		return nil, models.ErrSeatNotFound
	}
	bus, err := s.buses.GetByID(ctx, seat.BusID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, models.ErrSeatNotFound
	}

	// Cheap pre-check so we do not open provider orders that are bound to be orphaned.
	// Repeated under the row lock below.
	available, err := s.ledger.IsAvailable(ctx, bus.ID, seat.ID, *journeyDate)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, models.ErrSeatAlreadyBooked
	}
	if seat.HasLiveHold(s.now()) {
		return nil, models.ErrSeatHeld
	}

	amount, err := bus.PriceMinorUnits()
	if err != nil {
		return nil, fmt.Errorf("failed to price seat: %w", err)
	}

	paymentID := uuid.New()
	orderID, err := s.orders.openGatewayOrder(ctx, amount, s.config.Currency, paymentID.String())
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:             paymentID,
		UserID:         userID,
		SeatID:         &seat.ID,
		JourneyDate:    journeyDate,
		GatewayOrderID: orderID,
		Amount:         amount,
		Currency:       s.config.Currency,
		Status:         models.PaymentCreated,
	}

	var hold *models.HoldResult
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		locked, err := s.seats.LockByID(ctx, tx, seat.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return models.ErrSeatNotFound
		}

		available, err := s.ledger.isAvailable(ctx, tx, bus.ID, locked.ID, *journeyDate)
		if err != nil {
			return err
		}
		if !available {
			return models.ErrSeatAlreadyBooked
		}

		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return err
		}

		hold, err = s.ledger.holdLocked(ctx, tx, locked, &payment.ID, models.HoldDuration)
		return err
	})
	if err != nil {
		// the provider order stays orphaned; it is never paid against
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"seat_id":  seatID,
			"error":    err.Error(),
		}).Warn("Seat hold failed after gateway order was created")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"order_id":     orderID,
		"seat_id":      seat.ID,
		"journey_date": journeyDate.String(),
		"amount":       amount,
		"held_until":   hold.HeldUntil,
	}).Info("Seat held and payment order created")

	return &models.CreateOrderResponse{
		PaymentID:     payment.ID,
		OrderID:       orderID,
		Amount:        amount,
		AmountDisplay: models.FormatMinorUnits(amount),
		Currency:      payment.Currency,
		GatewayKeyID:  s.gateway.KeyID(),
		SeatID:        seat.ID,
		SeatNumber:    seat.SeatNumber,
		JourneyDate:   *journeyDate,
		HoldExpiresAt: hold.HeldUntil,
	}, nil
}

// ============================================================================
// VERIFY + COMMIT
// ============================================================================

// VerifyAndCommit checks a gateway callback and books the seat.
// At most one booking can exist per (bus, seat, journey date); concurrent
// retries of the same callback get SEAT_ALREADY_BOOKED.
func (s *BookingCoordinatorService) VerifyAndCommit(ctx context.Context, userID uuid.UUID, input VerifyPaymentInput) (*models.BookingConfirmation, error) {
	if err := s.validateJourneyDate(input.JourneyDate); err != nil {
		return nil, err
	}
	journeyDate := *input.JourneyDate

	// no side effects, so it runs before the transaction opens
	if err := s.gateway.VerifySignature(input.OrderID, input.PaymentID, input.Signature); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": input.OrderID,
			"error":    err.Error(),
		}).Warn("Payment signature rejected")
		return nil, models.ErrSignatureInvalid.Wrap(err)
	}

	var (
		booking     *models.Booking
		seat        *models.Seat
		holdExpired bool
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// Lock order: payment, then seat
		payment, err := s.payments.LockByOrderIDForUser(ctx, tx, input.OrderID, userID)
		if err != nil {
			return err
		}
		if payment == nil {
			return models.ErrPaymentNotFound
		}
		seat, err = s.seats.LockByID(ctx, tx, input.SeatID)
		if err != nil {
			return err
		}
		if seat == nil {
			return models.ErrSeatNotFound
		}

		booked, err := s.bookings.ExistsForSeatDate(ctx, tx, seat.BusID, seat.ID, journeyDate)
		if err != nil {
			return err
		}
		if booked {
			return models.ErrSeatAlreadyBooked
		}

		if !payment.Status.CanTransitionTo(models.PaymentSuccess) {
			return models.ErrPaymentAlreadyProcessed.WithMessage("payment is already %s", payment.Status)
		}
		if !payment.MatchesSeat(seat.ID, journeyDate) {
			return models.ErrPaymentSeatMismatch
		}

		now := s.now()
		if seat.HasLiveHold(now) && !seat.IsHeldBy(payment.ID, now) {
			return models.ErrSeatHeld
		}
		if seat.HasExpiredHold(now) {
			// the cleared hold is committed, the booking is not
			holdExpired = true
			return s.ledger.releaseHold(ctx, tx, seat.ID)
		}

		booking = &models.Booking{
			UserID:      userID,
			BusID:       seat.BusID,
			SeatID:      seat.ID,
			JourneyDate: journeyDate,
		}
		if err := s.bookings.Create(ctx, tx, booking); err != nil {
			if database.IsUniqueViolation(err, database.BookingsSeatDateConstraint) {
				return models.ErrSeatAlreadyBooked
			}
			return err
		}

		if err := s.seats.MarkBooked(ctx, tx, seat.ID); err != nil {
			return err
		}
		return s.payments.MarkSuccess(ctx, tx, payment.ID, input.PaymentID, input.Signature, booking.ID)
	})
	if err != nil {
		return nil, err
	}
	if holdExpired {
		return nil, models.ErrHoldExpired
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"booking_id":   booking.ID,
		"order_id":     input.OrderID,
		"seat_id":      seat.ID,
		"journey_date": journeyDate.String(),
	}).Info("Payment verified and booking committed")

	confirmation := &models.BookingConfirmation{
		Booking: booking,
		OrderID: input.OrderID,
		Status:  models.PaymentSuccess,
	}

	// Best-effort from here on; the booking is committed
	ticket, err := s.tickets.GetOrCreate(ctx, s.db, booking)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"error":      err.Error(),
		}).Error("Failed to issue ticket after booking commit")
	} else {
		confirmation.TicketID = &ticket.ID
	}

	event := s.snapshot(ctx, booking, seat)
	event.TicketID = confirmation.TicketID
	event.OrderID = input.OrderID
	s.events.Publish(ctx, TopicBookingConfirmed, event)

	return confirmation, nil
}

// ============================================================================
// CANCEL
// ============================================================================

// CancelBooking deletes one of the caller's bookings and frees the seat for
// its date. The payment is kept for the record; no gateway refund is issued.
func (s *BookingCoordinatorService) CancelBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.CancelResult, error) {
	booking, err := s.bookings.GetByIDForUser(ctx, s.db, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}

	var seat *models.Seat
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// the payment row is touched by the booking's ON DELETE SET NULL, lock it first
		if _, err := s.payments.LockSuccessfulForBooking(ctx, tx, booking.ID, userID); err != nil {
			return err
		}
		seat, err = s.seats.LockByID(ctx, tx, booking.SeatID)
		if err != nil {
			return err
		}

		current, err := s.bookings.GetByIDForUser(ctx, tx, booking.ID, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return models.ErrBookingNotFound
		}

		if err := s.bookings.Delete(ctx, tx, booking.ID); err != nil {
			return err
		}
		if seat == nil {
			return nil
		}
		return s.seats.ClearBookedHint(ctx, tx, seat.ID)
	})
	if err != nil {
		return nil, err
	}

	cancelledAt := s.now()
	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"booking_id": booking.ID,
		"seat_id":    booking.SeatID,
	}).Info("Booking cancelled")

	s.events.Publish(ctx, TopicBookingCancelled, s.snapshot(ctx, booking, seat))

	result := &models.CancelResult{
		BookingID:   booking.ID,
		JourneyDate: booking.JourneyDate,
		CancelledAt: cancelledAt,
	}
	if seat != nil {
		result.SeatNumber = seat.SeatNumber
	}
	return result, nil
}

// ListForUser returns the user's bookings, newest first
func (s *BookingCoordinatorService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.BookingSummary, error) {
	return s.bookings.ListSummariesByUser(ctx, userID)
}

// snapshot builds a booking event; a missing bus only thins out the notification
func (s *BookingCoordinatorService) snapshot(ctx context.Context, booking *models.Booking, seat *models.Seat) *BookingEvent {
	bus, err := s.buses.GetByID(ctx, booking.BusID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load bus for booking event")
	}
	return newBookingEvent(booking, bus, seat, s.now())
}
