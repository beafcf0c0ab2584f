package timeslot

import (
	"time"

	"cloud.google.com/go/civil"
)

// At converts a calendar date and time of day in loc to an absolute instant.
// 24:00 maps to midnight of the following day.
func At(date civil.Date, tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year, date.Month, date.Day, 0, int(tod), 0, 0, loc)
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}

// Weekday returns the day of week for date (Sunday = 0).
func Weekday(date civil.Date) time.Weekday {
	return date.In(time.UTC).Weekday()
}

func IsWeekend(date civil.Date) bool {
	wd := Weekday(date)
	return wd == time.Saturday || wd == time.Sunday
}
