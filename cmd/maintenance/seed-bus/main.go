package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/database"
	"github.com/smarttransit/bus-booking-backend/internal/models"
)

// seed-bus creates a bus with numbered seats for local testing
func main() {
	bus := models.Bus{}
	var dbURLFlag string
	var migrate bool

	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&migrate, "migrate", false, "apply the schema before seeding")
	flag.StringVar(&bus.BusName, "name", "Express", "bus name")
	flag.StringVar(&bus.Number, "number", "NB-1234", "registration number")
	flag.StringVar(&bus.Origin, "origin", "Colombo", "origin city")
	flag.StringVar(&bus.Destination, "destination", "Kandy", "destination city")
	flag.StringVar(&bus.Features, "features", "AC", "comma separated features")
	flag.StringVar(&bus.StartTime, "start", "08:30:00", "departure time HH:MM:SS")
	flag.StringVar(&bus.ReachTime, "reach", "11:45:00", "arrival time HH:MM:SS")
	flag.IntVar(&bus.NoOfSeats, "seats", 40, "number of seats")
	flag.StringVar(&bus.Price, "price", "500.00", "fare per seat")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	if bus.NoOfSeats <= 0 {
		log.Fatal("-seats must be positive")
	}
	if _, err := bus.PriceMinorUnits(); err != nil {
		log.Fatalf("invalid -price: %v", err)
	}
	if _, err := bus.DepartureOn(models.DateOf(time.Now()), time.UTC); err != nil {
		log.Fatalf("invalid -start: %v", err)
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if migrate {
		if err := database.Migrate(db.DB); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.NewBusRepository(db.DB).CreateWithSeats(ctx, &bus); err != nil {
		log.Fatalf("failed to seed bus: %v", err)
	}

	fmt.Printf("Created bus %s (%s) %s -> %s with %d seats\n", bus.ID, bus.Number, bus.Origin, bus.Destination, bus.NoOfSeats)
	fmt.Printf("Availability: GET /api/v1/buses/%s/availability?journey_date=%s\n", bus.ID, models.DateOf(time.Now()))
}
