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

// SeatLedgerService owns seat holds and date-scoped availability.
// Holds expire lazily: an expired hold is simply ignored and overwritten.
type SeatLedgerService struct {
	db       *sqlx.DB
	seats    *database.SeatRepository
	bookings *database.BookingRepository
	logger   *logrus.Logger
	now      func() time.Time
}

// NewSeatLedgerService creates a new SeatLedgerService
func NewSeatLedgerService(
	db *sqlx.DB,
	seats *database.SeatRepository,
	bookings *database.BookingRepository,
	logger *logrus.Logger,
) *SeatLedgerService {
	return &SeatLedgerService{
		db:       db,
		seats:    seats,
		bookings: bookings,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceHold locks the seat and reserves it for duration on behalf of holder
func (s *SeatLedgerService) PlaceHold(ctx context.Context, seatID uuid.UUID, holder *uuid.UUID, duration time.Duration) (*models.HoldResult, error) {
	var result *models.HoldResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		seat, err := s.seats.LockByID(ctx, tx, seatID)
		if err != nil {
			return err
		}
		if seat == nil {
			return models.ErrSeatNotFound
		}

		result, err = s.holdLocked(ctx, tx, seat, holder, duration)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// holdLocked places a hold on a seat whose row lock the caller already holds
func (s *SeatLedgerService) holdLocked(ctx context.Context, q database.Queryer, seat *models.Seat, holder *uuid.UUID, duration time.Duration) (*models.HoldResult, error) {
	now := s.now()
	if seat.HasLiveHold(now) {
		return nil, models.ErrSeatHeld
	}

	heldUntil := now.Add(duration)
	if err := s.seats.SetHold(ctx, q, seat.ID, holder, heldUntil); err != nil {
		return nil, err
	}

	cleared := seat.HasExpiredHold(now)
	if cleared {
		s.logger.WithFields(logrus.Fields{
			"seat_id":         seat.ID,
			"hold_expired_at": seat.HoldExpiresAt,
		}).Debug("Replaced expired seat hold")
	}

	seat.IsHeld = true
	seat.HoldExpiresAt = &heldUntil
	seat.HeldByPaymentID = holder

	return &models.HoldResult{
		SeatID:             seat.ID,
		HeldUntil:          heldUntil,
		ClearedExpiredHold: cleared,
	}, nil
}

// ReleaseHold clears any hold on the seat. Releasing an unheld seat is a no-op.
func (s *SeatLedgerService) ReleaseHold(ctx context.Context, seatID uuid.UUID) error {
	return s.releaseHold(ctx, s.db, seatID)
}

func (s *SeatLedgerService) releaseHold(ctx context.Context, q database.Queryer, seatID uuid.UUID) error {
	return s.seats.ClearHold(ctx, q, seatID)
}

// ReleaseHoldFor clears the hold only when paymentID owns it, so a hold
// placed later by another buyer survives
func (s *SeatLedgerService) ReleaseHoldFor(ctx context.Context, q database.Queryer, seatID, paymentID uuid.UUID) (bool, error) {
	return s.seats.ClearHoldOwnedBy(ctx, q, seatID, paymentID)
}

// IsAvailable reports whether no booking exists for the seat on the date.
// The legacy is_booked flag is never consulted.
func (s *SeatLedgerService) IsAvailable(ctx context.Context, busID, seatID uuid.UUID, journeyDate models.Date) (bool, error) {
	return s.isAvailable(ctx, s.db, busID, seatID, journeyDate)
}

func (s *SeatLedgerService) isAvailable(ctx context.Context, q database.Queryer, busID, seatID uuid.UUID, journeyDate models.Date) (bool, error) {
	booked, err := s.bookings.ExistsForSeatDate(ctx, q, busID, seatID, journeyDate)
	if err != nil {
		return false, err
	}
	return !booked, nil
}

// SeatAvailability lists every seat of a bus for a journey date
func (s *SeatLedgerService) SeatAvailability(ctx context.Context, busID uuid.UUID, journeyDate models.Date) (*models.BusAvailabilityResponse, error) {
	seats, err := s.seats.ListAvailability(ctx, busID, journeyDate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	available := 0
	for i := range seats {
		seat := &seats[i]
		seat.Held = seat.IsHeld && seat.HoldExpiresAt != nil && seat.HoldExpiresAt.After(now)
		if !seat.Booked && !seat.Held {
			available++
		}
	}

	return &models.BusAvailabilityResponse{
		BusID:       busID,
		JourneyDate: journeyDate,
		Seats:       seats,
		Available:   available,
	}, nil
}
