package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/db"
	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/scheduling"
	"github.com/codr1/courtsched/internal/testutil"
	"github.com/codr1/courtsched/internal/timeslot"
)

var testDate = civil.Date{Year: 2026, Month: time.October, Day: 20}

func newReservation(courtID int64, start, end string) reservation.Reservation {
	iv, _ := timeslot.Parse(start, end)
	return reservation.Reservation{
		CourtID:     courtID,
		UserID:      "member-7",
		Date:        testDate,
		Interval:    iv,
		Status:      reservation.StatusPending,
		TotalAmount: 2000,
	}
}

func TestUpsertCourtRoundTripsPolicy(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	p := testutil.CourtPolicy()
	p.Timezone = "Europe/Madrid"
	p.OperatingHours[time.Monday] = policy.DayHours{}
	peak := int64(3000)
	p.PeakHourRate = &peak
	p.PeakHours = []timeslot.Interval{{Start: timeslot.MustParse("18:00"), End: timeslot.MustParse("21:00")}}

	court, err := database.UpsertCourt(ctx, db.Court{Name: "Centre Court", Policy: p})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if court.ID == 0 {
		t.Fatal("expected an id")
	}

	loaded, err := database.LoadCourtPolicy(ctx, court.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Loc().String() != "Europe/Madrid" {
		t.Fatalf("location = %s", loaded.Loc())
	}
	if loaded.OperatingHours[time.Monday].Open {
		t.Fatal("monday should be closed")
	}
	if tue := loaded.OperatingHours[time.Tuesday]; !tue.Open || tue.Opens.String() != "06:00" || tue.Closes.String() != "22:00" {
		t.Fatalf("tuesday = %+v", tue)
	}
	if loaded.PeakHourRate == nil || *loaded.PeakHourRate != 3000 || len(loaded.PeakHours) != 1 {
		t.Fatalf("peak pricing = %v %v", loaded.PeakHourRate, loaded.PeakHours)
	}
	if len(loaded.Cancellation.Tiers) != 2 || loaded.Cancellation.Tiers[0].MinHoursBefore != 24 {
		t.Fatalf("tiers = %+v", loaded.Cancellation.Tiers)
	}

	court.Name = "Court 1"
	court.Policy.Cancellation.Tiers = nil
	updated, err := database.UpsertCourt(ctx, court)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Court 1" || len(updated.Policy.Cancellation.Tiers) != 0 {
		t.Fatalf("updated = %+v", updated)
	}
}

func TestUpsertCourtRejectsInvalidPolicy(t *testing.T) {
	database := testutil.NewTestDB(t)
	p := testutil.CourtPolicy()
	p.MinBookingMinutes = 240

	if _, err := database.UpsertCourt(context.Background(), db.Court{Name: "Broken", Policy: p}); !errors.Is(err, policy.ErrPolicyViolation) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadCourtPolicyNotFound(t *testing.T) {
	database := testutil.NewTestDB(t)
	if _, err := database.LoadCourtPolicy(context.Background(), 404); !errors.Is(err, scheduling.ErrCourtNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestInsertAndSaveReservation(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	court := testutil.SeedCourt(t, database, "Court A")

	r, err := database.InsertReservation(ctx, newReservation(court.ID, "10:00", "11:30"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	paymentID := "chrg_1"
	r.PaymentID = &paymentID
	r.Status = reservation.StatusConfirmed
	if err := database.SaveReservation(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := database.LoadByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Status != reservation.StatusConfirmed || loaded.PaymentID == nil || *loaded.PaymentID != "chrg_1" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Date != testDate || loaded.Interval.String() != "10:00-11:30" {
		t.Fatalf("loaded window = %s %s", loaded.Date, loaded.Interval)
	}

	if _, err := database.LoadByID(ctx, 999); !errors.Is(err, reservation.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
	r.ID = 999
	if err := database.SaveReservation(ctx, r); !errors.Is(err, reservation.ErrNotFound) {
		t.Fatalf("save missing err = %v", err)
	}
}

func TestInsertReservationRejectsOverlap(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	court := testutil.SeedCourt(t, database, "Court A")

	if _, err := database.InsertReservation(ctx, newReservation(court.ID, "10:00", "11:30")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := database.InsertReservation(ctx, newReservation(court.ID, "11:00", "12:00"))
	var unavailable reservation.SlotUnavailableError
	if !errors.As(err, &unavailable) || len(unavailable.Windows) != 1 || unavailable.Windows[0].String() != "10:00-11:30" {
		t.Fatalf("err = %v", err)
	}

	if _, err := database.InsertReservation(ctx, newReservation(court.ID, "11:30", "12:30")); err != nil {
		t.Fatalf("back-to-back insert: %v", err)
	}

	cancelled := newReservation(court.ID, "10:00", "11:00")
	cancelled.Status = reservation.StatusCancelled
	if _, err := database.InsertReservation(ctx, cancelled); err != nil {
		t.Fatalf("cancelled rows never conflict: %v", err)
	}

	active, err := database.LoadActiveReservations(ctx, court.ID, testDate)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	all, err := database.ListReservationsForDate(ctx, court.ID, testDate)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}

	if _, err := database.InsertReservation(ctx, newReservation(404, "10:00", "11:00")); !errors.Is(err, scheduling.ErrCourtNotFound) {
		t.Fatalf("unknown court err = %v", err)
	}
}

func TestStoreRunInTxRollsBack(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	court := testutil.SeedCourt(t, database, "Court A")
	store := database.Store()

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(tx scheduling.Store) error {
		if _, err := tx.InsertReservation(ctx, newReservation(court.ID, "10:00", "11:00")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	active, err := store.LoadActiveReservations(ctx, court.ID, testDate)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("rolled back insert is visible: %+v", active)
	}
}

func TestListReservationsStartingBetween(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	court := testutil.SeedCourt(t, database, "Court A")

	confirm := func(start, end string) reservation.Reservation {
		r := newReservation(court.ID, start, end)
		r.Status = reservation.StatusConfirmed
		r, err := database.InsertReservation(ctx, r)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return r
	}
	inWindow := confirm("10:00", "11:00")
	confirm("12:00", "13:00")
	if _, err := database.InsertReservation(ctx, newReservation(court.ID, "10:00", "10:00")); err == nil {
		t.Fatal("empty window must be rejected by the schema")
	}

	from := time.Date(2026, time.October, 20, 9, 50, 0, 0, time.UTC)
	due, err := database.ListReservationsStartingBetween(ctx, from, from.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(due) != 1 || due[0].ID != inWindow.ID {
		t.Fatalf("due = %+v", due)
	}

	if err := database.MarkReminderSent(ctx, inWindow.ID, from); err != nil {
		t.Fatalf("mark: %v", err)
	}
	due, err = database.ListReservationsStartingBetween(ctx, from, from.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("reminded reservation listed again: %+v", due)
	}
}

func TestStoreBacksSchedulingService(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	court := testutil.SeedCourt(t, database, "Court A")

	svc, err := scheduling.New(database.Store(), scheduling.WithClock(fixedClock(time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC))))
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	req := scheduling.CreateRequest{
		CourtID: court.ID,
		UserID:  "member-7",
		Date:    testDate,
		Start:   timeslot.MustParse("10:00"),
		End:     timeslot.MustParse("11:30"),
	}
	created, err := svc.CreateReservation(ctx, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.TotalAmount != 3000 {
		t.Fatalf("amount = %d", created.TotalAmount)
	}

	req.End = timeslot.MustParse("11:00")
	if _, err := svc.CreateReservation(ctx, req); !errors.Is(err, reservation.ErrSlotUnavailable) {
		t.Fatalf("overlap err = %v", err)
	}

	result, err := svc.CancelReservation(ctx, created.ID, "member-7", "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Reservation.Status != reservation.StatusCancelled {
		t.Fatalf("status = %s", result.Reservation.Status)
	}
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }
