package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codr1/courtsched/internal/db"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/timeslot"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// CourtPolicy is open 06:00-22:00 every day, books 60 to 180 minutes in 30
// minute steps at 2000 per hour, and refunds 100% more than 24h ahead and
// 50% more than 2h ahead.
func CourtPolicy() policy.Policy {
	p := policy.Policy{
		Timezone:              "UTC",
		GranularityMinutes:    30,
		MinBookingMinutes:     60,
		MaxBookingMinutes:     180,
		MaxAdvanceBookingDays: 7,
		HourlyRate:            2000,
		Cancellation: policy.CancellationPolicy{
			Description: "Full refund more than 24 hours ahead, half more than 2 hours ahead.",
			Tiers: []policy.RefundTier{
				{MinHoursBefore: 24, RefundPercentage: 100},
				{MinHoursBefore: 2, RefundPercentage: 50},
			},
		},
	}
	for day := range p.OperatingHours {
		p.OperatingHours[day] = policy.DayHours{
			Open:   true,
			Opens:  timeslot.MustParse("06:00"),
			Closes: timeslot.MustParse("22:00"),
		}
	}
	return p
}

// SeedCourt stores a court named name with CourtPolicy.
func SeedCourt(t *testing.T, database *db.DB, name string) db.Court {
	t.Helper()

	court, err := database.UpsertCourt(context.Background(), db.Court{Name: name, Policy: CourtPolicy()})
	if err != nil {
		t.Fatalf("seed court %q: %v", name, err)
	}
	return court
}
