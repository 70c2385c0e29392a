package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/smarttransit/bus-booking-backend/internal/config"
	"github.com/smarttransit/bus-booking-backend/internal/database"
)

// bookingTables hold per-journey state. Buses, seats and users are reference
// data owned by other services and are left alone.
var bookingTables = []string{
	"booking_audit_logs",
	"tickets",
	"payments",
	"bookings",
}

func main() {
	var dbURLFlag string
	var confirm bool
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.BoolVar(&confirm, "yes", false, "skip the safety check")
	flag.Parse()

	// Try loading .env from current working directory (optional)
	_ = godotenv.Load()

	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}
	if os.Getenv("ENVIRONMENT") == "production" && !confirm {
		log.Fatal("refusing to clear booking data in production without -yes")
	}

	// Build minimal database config without loading full app config
	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("Connected to database. Clearing booking data...")

	tx, err := db.Beginx()
	if err != nil {
		log.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, table := range bookingTables {
		if _, err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			log.Fatalf("failed to truncate %s: %v", table, err)
		}
	}

	// holds and the legacy booked flag go with the bookings
	if _, err := tx.Exec(`
		UPDATE seats
		SET is_booked = FALSE, is_held = FALSE, hold_expires_at = NULL,
		    held_by_payment_id = NULL, updated_at = NOW()`); err != nil {
		log.Fatalf("failed to reset seats: %v", err)
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("failed to commit: %v", err)
	}

	fmt.Println("Booking data cleared.")

	fmt.Println("Post-clear row counts:")
	for _, t := range append(bookingTables, "seats") {
		var count int
		if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			fmt.Printf("  %s: error: %v\n", t, err)
			continue
		}
		fmt.Printf("  %s: %d\n", t, count)
	}
}
