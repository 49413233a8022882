// seed inserts a few test patients into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/curaview/patient-portal/internal/infrastructure/postgres"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "correct-horse-battery"

type patientSpec struct {
	email     string
	firstName string
	lastName  string
	username  string
	phone     string
	gender    string
	confirmed bool
}

var patients = []patientSpec{
	// Confirmed account — can log in and use every settings flow
	{"ada@test.local", "Ada", "Nilsen", "ada.n", "+15550100001", "female", true},
	{"bruno@test.local", "Bruno", "Keller", "bkeller", "+15550100002", "male", true},

	// Unconfirmed — for exercising the confirmation flow
	{"carla@test.local", "Carla", "Osei", "carla", "", "female", false},
	{"dmitri@test.local", "Dmitri", "Volkov", "", "+15550100004", "male", false},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set — run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var inserted, skipped int
	for _, spec := range patients {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO patients (
				email, hashed_password, first_name, last_name,
				username, phone, gender, confirmed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7,
				CASE WHEN $8 THEN NOW() ELSE NULL END)
			ON CONFLICT (email) DO NOTHING
			RETURNING id`,
			spec.email, string(hash), spec.firstName, spec.lastName,
			spec.username, spec.phone, spec.gender, spec.confirmed,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			skipped++
			continue
		}
		if err != nil {
			log.Fatalf("insert patient %s: %v", spec.email, err)
		}
		inserted++
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Patients created: %d  (skipped %d already existing)\n", inserted, skipped)
	fmt.Printf("  Password (all):   %s\n", seedPassword)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — log in as a confirmed patient:")
	fmt.Println()
	fmt.Println("    curl -si -X POST http://localhost:8080/auth/login \\")
	fmt.Println("      -H 'Content-Type: application/json' \\")
	fmt.Printf("      -d '{\"email\":\"ada@test.local\",\"password\":\"%s\"}'\n", seedPassword)
	fmt.Println()
	fmt.Println("    # Copy the portal_session cookie from the Set-Cookie header, then:")
	fmt.Println()
	fmt.Println("    curl -s http://localhost:8080/account/me --cookie 'portal_session=VALUE'")
	fmt.Println()
	fmt.Println("  Step 2 — exercise the confirmation flow:")
	fmt.Println()
	fmt.Println("    curl -s -X POST http://localhost:8080/auth/confirm/resend \\")
	fmt.Println("      -H 'Content-Type: application/json' -d '{\"email\":\"carla@test.local\"}'")
	fmt.Println()
	fmt.Println("    # The link is in the server log (emails are logged in ENV=local):")
	fmt.Println("    curl -s 'http://localhost:8080/auth/confirm?token=TOKEN'")
}
