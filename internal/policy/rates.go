package policy

import (
	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/timeslot"
)

// Quote returns the price of booking iv on date. Weekend days use the
// weekend rate for every minute; weekdays charge peak minutes at the peak
// rate and the rest at the hourly rate.
func (p Policy) Quote(date civil.Date, iv timeslot.Interval) int64 {
	if timeslot.IsWeekend(date) && p.WeekendRate != nil {
		return prorate(*p.WeekendRate, iv.Minutes())
	}

	peakMinutes := 0
	if p.PeakHourRate != nil {
		for _, peak := range p.PeakHours {
			if shared, ok := timeslot.Intersection(iv, peak); ok {
				peakMinutes += shared.Minutes()
			}
		}
		if peakMinutes > iv.Minutes() {
			peakMinutes = iv.Minutes()
		}
	}

	total := prorate(p.HourlyRate, iv.Minutes()-peakMinutes)
	if peakMinutes > 0 {
		total += prorate(*p.PeakHourRate, peakMinutes)
	}
	return total
}

func prorate(hourly int64, minutes int) int64 {
	return hourly * int64(minutes) / 60
}
