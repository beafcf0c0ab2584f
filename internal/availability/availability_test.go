package availability

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

var (
	testDate = civil.Date{Year: 2026, Month: time.October, Day: 20}
	testNow  = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
)

func testPolicy() policy.Policy {
	p := policy.Policy{
		Timezone:              "UTC",
		GranularityMinutes:    30,
		MinBookingMinutes:     60,
		MaxBookingMinutes:     180,
		MaxAdvanceBookingDays: 7,
		HourlyRate:            2000,
	}
	for day := range p.OperatingHours {
		p.OperatingHours[day] = policy.DayHours{Open: true, Opens: timeslot.MustParse("06:00"), Closes: timeslot.MustParse("22:00")}
	}
	return p
}

func existingAt(t *testing.T, start, end string, status reservation.Status) reservation.Reservation {
	t.Helper()
	iv, err := timeslot.Parse(start, end)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return reservation.Reservation{ID: 1, CourtID: 1, Date: testDate, Interval: iv, Status: status}
}

func TestComputeFreeSlotsAroundExistingBooking(t *testing.T) {
	p := testPolicy()
	booked := existingAt(t, "10:00", "11:30", reservation.StatusConfirmed)

	result := ComputeFreeSlots(p, testDate, []reservation.Reservation{booked}, 30, testNow)
	if result.Reason != ReasonNone {
		t.Fatalf("unexpected reason %q", result.Reason)
	}

	seen := make(map[string]bool, len(result.Slots))
	window, _ := p.Window(testDate)
	for _, slot := range result.Slots {
		seen[slot.Interval.String()] = true
		if !timeslot.IsWithin(slot.Interval, window) {
			t.Fatalf("slot %s outside operating window", slot.Interval)
		}
		if timeslot.Overlaps(slot.Interval, booked.Interval) {
			t.Fatalf("slot %s overlaps existing booking", slot.Interval)
		}
		if m := slot.Interval.Minutes(); m < p.MinBookingMinutes || m > p.MaxBookingMinutes {
			t.Fatalf("slot %s has duration %d", slot.Interval, m)
		}
	}

	for _, want := range []string{"06:00-07:00", "07:00-10:00", "08:30-10:00", "09:00-10:00", "11:30-12:30", "19:00-22:00", "21:00-22:00"} {
		if !seen[want] {
			t.Errorf("expected slot %s", want)
		}
	}
	for _, unwanted := range []string{"09:30-10:30", "11:00-12:00", "09:00-11:00", "21:30-22:30"} {
		if seen[unwanted] {
			t.Errorf("unexpected slot %s", unwanted)
		}
	}
	if len(result.Gaps) != 2 || result.Gaps[0].String() != "06:00-10:00" || result.Gaps[1].String() != "11:30-22:00" {
		t.Fatalf("gaps = %v", result.Gaps)
	}
}

func TestComputeFreeSlotsIgnoresCancelled(t *testing.T) {
	p := testPolicy()
	cancelled := existingAt(t, "10:00", "11:30", reservation.StatusCancelled)
	result := ComputeFreeSlots(p, testDate, []reservation.Reservation{cancelled}, 0, testNow)
	if len(result.Gaps) != 1 || result.Gaps[0].String() != "06:00-22:00" {
		t.Fatalf("cancelled reservation should not block, gaps = %v", result.Gaps)
	}
}

func TestComputeFreeSlotsReasons(t *testing.T) {
	p := testPolicy()
	p.OperatingHours[timeslot.Weekday(testDate)] = policy.DayHours{Open: false}

	if got := ComputeFreeSlots(p, testDate, nil, 30, testNow); got.Reason != ReasonClosedDay || len(got.Slots) != 0 {
		t.Fatalf("closed day result = %+v", got)
	}

	far := testDate.AddDays(30)
	if got := ComputeFreeSlots(testPolicy(), far, nil, 30, testNow); got.Reason != ReasonTooFarInAdvance {
		t.Fatalf("far date reason = %q", got.Reason)
	}

	past := civil.Date{Year: 2026, Month: time.October, Day: 1}
	if got := ComputeFreeSlots(testPolicy(), past, nil, 30, testNow); got.Reason != ReasonPastDate {
		t.Fatalf("past date reason = %q", got.Reason)
	}

	full := existingAt(t, "06:00", "22:00", reservation.StatusConfirmed)
	if got := ComputeFreeSlots(testPolicy(), testDate, []reservation.Reservation{full}, 30, testNow); got.Reason != ReasonFullyBooked {
		t.Fatalf("full day reason = %q", got.Reason)
	}
}

func TestComputeFreeSlotsSkipsStartedWindowsToday(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, time.October, 20, 20, 15, 0, 0, time.UTC)
	result := ComputeFreeSlots(p, testDate, nil, 30, now)
	for _, slot := range result.Slots {
		if slot.Interval.Start <= timeslot.MustParse("20:15") {
			t.Fatalf("slot %s already started", slot.Interval)
		}
	}
	if len(result.Slots) != 3 {
		t.Fatalf("expected 20:30-21:30, 20:30-22:00 and 21:00-22:00, got %v", result.Slots)
	}
}

func TestIsFree(t *testing.T) {
	existing := []reservation.Reservation{existingAt(t, "10:00", "11:00", reservation.StatusPending)}
	after, _ := timeslot.Parse("11:00", "12:00")
	during, _ := timeslot.Parse("10:30", "11:30")
	if !IsFree(after, existing) {
		t.Fatal("back-to-back window should be free")
	}
	if IsFree(during, existing) {
		t.Fatal("overlapping window should not be free")
	}
}
