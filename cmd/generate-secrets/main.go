package main

import (
	"fmt"
	"log"

	"github.com/smarttransit/bus-booking-backend/internal/utils"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the booking backend")
	fmt.Println("===========================================")
	fmt.Println()

	secrets, err := utils.GenerateServiceSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	fmt.Println("✅ Secrets generated successfully!")
	fmt.Println()
	fmt.Println("Add these to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secrets.JWTSecret)
	fmt.Println()
	fmt.Println("# sandbox payment mode only; use the dashboard secret with PAYMENT_MODE=razorpay")
	fmt.Printf("RAZORPAY_KEY_SECRET=%s\n", secrets.SandboxSecret)
	fmt.Println()
	fmt.Println("⚠️  JWT_SECRET must match the auth service that issues tokens.")
	fmt.Println("⚠️  Never commit these secrets to version control!")
	fmt.Println("===========================================")
}
