// seed inserts development sample data for local testing.
// Idempotent: skips inserts if TEST-SERIAL-001 already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"chromebook-cache/backend/internal/config"
	"chromebook-cache/backend/internal/db"
	invrepo "chromebook-cache/backend/internal/inventory/repository"
	usagedomain "chromebook-cache/backend/internal/usage/domain"
	usagerepo "chromebook-cache/backend/internal/usage/repository"
)

type seedDevice struct {
	serialNumber string
	assetID      *string
}

type seedUsage struct {
	serialNumber string
	assetID      *string
	userEmail    string
	recordedAt   time.Time
}

func strPtr(s string) *string { return &s }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	inventory := invrepo.NewPostgresRepository(conn)
	usage := usagerepo.NewPostgresRepository(conn)

	existing, err := inventory.GetBySerial(ctx, "TEST-SERIAL-001")
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (TEST-SERIAL-001 exists). Skipping.")
		os.Exit(0)
	}

	devices := []seedDevice{
		{"TEST-SERIAL-001", strPtr("ASSET-001")},
		{"TEST-SERIAL-002", strPtr("ASSET-002")},
		{"TEST-SERIAL-003", strPtr("ASSET-003")},
		{"TEST-SERIAL-004", nil},
		{"TEST-SERIAL-005", strPtr("ASSET-005")},
	}
	for _, d := range devices {
		if err := inventory.Upsert(ctx, d.serialNumber, d.assetID); err != nil {
			log.Fatalf("seed inventory %s: %v", d.serialNumber, err)
		}
	}

	now := time.Now().UTC()
	usageRows := []seedUsage{
		// Device 1: multiple users over time.
		{"TEST-SERIAL-001", strPtr("ASSET-001"), "student1@test.edu", now.AddDate(0, 0, -1)},
		{"TEST-SERIAL-001", strPtr("ASSET-001"), "student2@test.edu", now.AddDate(0, 0, -3)},
		{"TEST-SERIAL-001", strPtr("ASSET-001"), "student3@test.edu", now.AddDate(0, 0, -7)},

		// Device 2: single recent user.
		{"TEST-SERIAL-002", strPtr("ASSET-002"), "teacher1@test.edu", now.Add(-2 * time.Hour)},

		// Device 3: same student as device 1's latest.
		{"TEST-SERIAL-003", strPtr("ASSET-003"), "student1@test.edu", now.Add(-6 * time.Hour)},

		// Device 4: no asset tag.
		{"TEST-SERIAL-004", nil, "student4@test.edu", now.AddDate(0, 0, -2)},

		// Device 5: multiple recent entries.
		{"TEST-SERIAL-005", strPtr("ASSET-005"), "student5@test.edu", now.Add(-30 * time.Minute)},
		{"TEST-SERIAL-005", strPtr("ASSET-005"), "student6@test.edu", now.Add(-12 * time.Hour)},
		{"TEST-SERIAL-005", strPtr("ASSET-005"), "student7@test.edu", now.AddDate(0, 0, -1)},
	}
	for _, u := range usageRows {
		err := usage.Create(ctx, &usagedomain.Observation{
			SerialNumber: u.serialNumber,
			AssetID:      u.assetID,
			UserEmail:    u.userEmail,
			RecordedAt:   u.recordedAt,
		})
		if err != nil {
			log.Fatalf("seed usage %s/%s: %v", u.serialNumber, u.userEmail, err)
		}
	}

	log.Printf("Created %d test inventory entries", len(devices))
	log.Printf("Created %d test usage entries", len(usageRows))
}
