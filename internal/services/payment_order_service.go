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

// PaymentOrderService tracks gateway orders from creation to a final status
type PaymentOrderService struct {
	db       *sqlx.DB
	payments *database.PaymentRepository
	seats    *database.SeatRepository
	ledger   *SeatLedgerService
	gateway  PaymentGateway
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentOrderService creates a new PaymentOrderService
func NewPaymentOrderService(
	db *sqlx.DB,
	payments *database.PaymentRepository,
	seats *database.SeatRepository,
	ledger *SeatLedgerService,
	gateway PaymentGateway,
	logger *logrus.Logger,
) *PaymentOrderService {
	return &PaymentOrderService{
		db:       db,
		payments: payments,
		seats:    seats,
		ledger:   ledger,
		gateway:  gateway,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder opens a gateway order and records it as CREATED.
// A gateway failure leaves no payment row behind.
func (s *PaymentOrderService) CreateOrder(ctx context.Context, userID uuid.UUID, amount int64, currency string) (*models.Payment, error) {
	orderID, err := s.openGatewayOrder(ctx, amount, currency, uuid.NewString())
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		UserID:         userID,
		GatewayOrderID: orderID,
		Amount:         amount,
		Currency:       currency,
		Status:         models.PaymentCreated,
	}
	if err := s.payments.Create(ctx, s.db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// openGatewayOrder asks the provider for an order id
func (s *PaymentOrderService) openGatewayOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	if amount <= 0 {
		return "", models.ErrInvalidInput.WithMessage("amount must be positive")
	}

	orderID, err := s.gateway.CreateOrder(ctx, amount, currency, receipt)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"amount":   amount,
			"currency": currency,
			"error":    err.Error(),
		}).Error("Payment gateway rejected order creation")
		return "", models.ErrGateway.Wrap(err)
	}
	return orderID, nil
}

// GetStatus returns the caller's payment for an order id
func (s *PaymentOrderService) GetStatus(ctx context.Context, orderID string, userID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByOrderIDForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, models.ErrPaymentNotFound
	}
	return payment, nil
}

// ListForUser returns the user's payments, newest first
func (s *PaymentOrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	return s.payments.ListByUser(ctx, userID)
}

// CancelOrder abandons a CREATED order the client dismissed and releases
// the seat hold it owns. Cancelling a FAILED order again is a no-op.
func (s *PaymentOrderService) CancelOrder(ctx context.Context, orderID string, userID uuid.UUID) (*models.Payment, error) {
	var payment *models.Payment
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		payment, err = s.payments.LockByOrderIDForUser(ctx, tx, orderID, userID)
		if err != nil {
			return err
		}
		if payment == nil {
			return models.ErrPaymentNotFound
		}

		if payment.Status.IsFinal() {
			return models.ErrPaymentAlreadyProcessed.WithMessage("payment is already %s", payment.Status)
		}
		if !payment.Status.CanTransitionTo(models.PaymentFailed) {
			// already FAILED
			return nil
		}

		if err := s.payments.UpdateStatus(ctx, tx, payment.ID, models.PaymentFailed); err != nil {
			return err
		}
		payment.Status = models.PaymentFailed

		if payment.SeatID == nil {
			return nil
		}
		// payment row first, then seat
		if _, err := s.seats.LockByID(ctx, tx, *payment.SeatID); err != nil {
			return err
		}
		released, err := s.ledger.ReleaseHoldFor(ctx, tx, *payment.SeatID, payment.ID)
		if err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"order_id":      orderID,
			"seat_id":       *payment.SeatID,
			"hold_released": released,
		}).Info("Payment order cancelled")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkAbandonedFailed fails CREATED orders whose hold has lapsed by more
// than grace. Seat holds are left to expire lazily.
func (s *PaymentOrderService) MarkAbandonedFailed(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().Add(-(models.HoldDuration + grace))
	return s.payments.MarkAbandonedFailed(ctx, cutoff)
}
