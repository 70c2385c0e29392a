package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// RefundService reverses a paid booking through the gateway and frees the seat
type RefundService struct {
	db          *sqlx.DB
	bookings    *database.BookingRepository
	payments    *database.PaymentRepository
	seats       *database.SeatRepository
	buses       *database.BusRepository
	ticketStore *database.TicketRepository
	ledger      *SeatLedgerService
	tickets     *TicketService
	gateway     PaymentGateway
	events      EventPublisher
	logger      *logrus.Logger
	now         func() time.Time
}

// NewRefundService creates a new RefundService
func NewRefundService(
	db *sqlx.DB,
	bookings *database.BookingRepository,
	payments *database.PaymentRepository,
	seats *database.SeatRepository,
	buses *database.BusRepository,
	ticketStore *database.TicketRepository,
	ledger *SeatLedgerService,
	tickets *TicketService,
	gateway PaymentGateway,
	events EventPublisher,
	logger *logrus.Logger,
) *RefundService {
	return &RefundService{
		db:          db,
		bookings:    bookings,
		payments:    payments,
		seats:       seats,
		buses:       buses,
		ticketStore: ticketStore,
		ledger:      ledger,
		tickets:     tickets,
		gateway:     gateway,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// Refund refunds one of the caller's bookings.
// Nothing local changes unless the gateway refund succeeds.
func (s *RefundService) Refund(ctx context.Context, userID, bookingID uuid.UUID) (*models.RefundResult, error) {
	booking, err := s.bookings.GetByIDForUser(ctx, s.db, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, models.ErrBookingNotFound
	}

	ticket, err := s.tickets.GetOrCreate(ctx, s.db, booking)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.CanTransitionTo(models.TicketRefunded) {
		return nil, models.ErrAlreadyRefunded
	}
	if ticket.Status == models.TicketUsed {
		// still refundable; flagged for review
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"ticket_id":  ticket.ID,
		}).Warn("Refunding a ticket that was already used")
	}

	payment, err := s.payments.GetSuccessfulForBooking(ctx, s.db, booking.ID, userID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.GatewayPaymentID == nil {
		return nil, models.ErrNoPayment
	}

	var seat *models.Seat
	paidOut := false
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// Lock order: payment, then seat. The payment lock is held across the
		// gateway call so a concurrent refund waits here and then sees REFUNDED.
		locked, err := s.payments.LockByID(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if locked == nil || !locked.Status.CanTransitionTo(models.PaymentRefunded) {
			return models.ErrAlreadyRefunded
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

		if err := s.gateway.Refund(ctx, *payment.GatewayPaymentID, payment.Amount); err != nil {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"order_id":   payment.GatewayOrderID,
				"amount":     payment.Amount,
				"error":      err.Error(),
			}).Error("Gateway refund failed")
			return models.ErrRefundGatewayError.WithMessage("refund failed: %v", err)
		}
		paidOut = true

		// detached before the delete so the REFUNDED ticket outlives the booking
		if err := s.ticketStore.MarkRefunded(ctx, tx, ticket.ID); err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(ctx, tx, payment.ID, models.PaymentRefunded); err != nil {
			return err
		}
		if seat != nil {
			if err := s.seats.ClearBookedHint(ctx, tx, seat.ID); err != nil {
				return err
			}
			if _, err := s.ledger.ReleaseHoldFor(ctx, tx, seat.ID, payment.ID); err != nil {
				return err
			}
		}
		return s.bookings.Delete(ctx, tx, booking.ID)
	})
	if err != nil {
		if paidOut {
			// the gateway has already paid out; this needs manual reconciliation
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"order_id":   payment.GatewayOrderID,
				"error":      err.Error(),
			}).Error("Refund issued at gateway but local update failed")
		}
		return nil, err
	}

	refundedAt := s.now()
	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"booking_id": booking.ID,
		"order_id":   payment.GatewayOrderID,
		"amount":     payment.Amount,
	}).Info("Booking refunded")

	bus, err := s.buses.GetByID(ctx, booking.BusID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load bus for refund event")
	}
	event := newBookingEvent(booking, bus, seat, refundedAt)
	event.TicketID = &ticket.ID
	event.OrderID = payment.GatewayOrderID
	event.Amount = payment.Amount
	event.Currency = payment.Currency
	s.events.Publish(ctx, TopicBookingRefunded, event)

	return &models.RefundResult{
		BookingID:     booking.ID,
		TicketID:      ticket.ID,
		TicketStatus:  models.TicketRefunded,
		OrderID:       payment.GatewayOrderID,
		PaymentStatus: models.PaymentRefunded,
		Amount:        payment.Amount,
		AmountDisplay: models.FormatMinorUnits(payment.Amount),
		RefundedAt:    refundedAt,
	}, nil
}
