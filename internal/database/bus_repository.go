package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// BusRepository reads bus inventory and creates buses with their seats
type BusRepository struct {
	db    *sqlx.DB
	seats *SeatRepository
}

// NewBusRepository creates a new BusRepository
func NewBusRepository(db *sqlx.DB) *BusRepository {
	return &BusRepository{db: db, seats: NewSeatRepository(db)}
}

// GetByID returns a bus or nil when it does not exist
func (r *BusRepository) GetByID(ctx context.Context, busID uuid.UUID) (*models.Bus, error) {
	query := `
		SELECT id, bus_name, number, origin, destination, features,
		       start_time, reach_time, no_of_seats, price, created_at
		FROM buses
		WHERE id = $1`

	var bus models.Bus
	err := r.db.GetContext(ctx, &bus, query, busID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bus: %w", err)
	}
	return &bus, nil
}

// CreateWithSeats inserts a bus and one seat per NoOfSeats in a single transaction
func (r *BusRepository) CreateWithSeats(ctx context.Context, bus *models.Bus) error {
	if bus.ID == uuid.Nil {
		bus.ID = uuid.New()
	}

	return WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO buses (id, bus_name, number, origin, destination, features,
			                   start_time, reach_time, no_of_seats, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at`

		err := tx.QueryRowxContext(ctx, query,
			bus.ID, bus.BusName, bus.Number, bus.Origin, bus.Destination, bus.Features,
			bus.StartTime, bus.ReachTime, bus.NoOfSeats, bus.Price,
		).Scan(&bus.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create bus: %w", err)
		}

		return r.seats.CreateForBus(ctx, tx, bus.ID, bus.NoOfSeats)
	})
}
