package email

import (
	"fmt"
	"strings"
	"time"

	"github.com/codr1/courtsched/internal/lifecycle"
)

type Message struct {
	Subject string
	Body    string
}

// Details is what a reservation notice shows. Amounts are in minor units.
type Details struct {
	CourtName          string
	Date               string
	TimeRange          string
	TotalAmount        int64
	CancellationPolicy string
	Reason             string
	RefundPercentage   *int64
	RefundAmount       *int64
}

func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

// FormatAmount renders minor units with two decimals.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// Build renders the notice for template. Unknown templates return false.
func Build(template string, details Details) (Message, bool) {
	court := orDefault(details.CourtName, "your court")

	var (
		subject string
		intro   string
		extra   []string
	)
	switch template {
	case lifecycle.NoticeCreated:
		subject = "Court Reservation Received"
		intro = "We are holding your court while your payment is processed."
		extra = append(extra, fmt.Sprintf("Amount due: %s", FormatAmount(details.TotalAmount)))
	case lifecycle.NoticeConfirmed:
		subject = "Court Reservation Confirmed"
		intro = "Your court booking is confirmed."
		extra = append(extra,
			fmt.Sprintf("Amount paid: %s", FormatAmount(details.TotalAmount)),
			fmt.Sprintf("Cancellation policy: %s", orDefault(details.CancellationPolicy, "Contact the club for cancellation policy details.")),
		)
	case lifecycle.NoticeCancelled:
		subject = "Court Reservation Cancelled"
		intro = "Your court booking has been cancelled."
		if reason := strings.TrimSpace(details.Reason); reason != "" {
			extra = append(extra, fmt.Sprintf("Reason: %s", reasonLabel(reason)))
		}
		if details.RefundPercentage != nil {
			refund := fmt.Sprintf("Refund: %d%%", *details.RefundPercentage)
			if details.RefundAmount != nil && *details.RefundAmount > 0 {
				refund = fmt.Sprintf("%s (%s)", refund, FormatAmount(*details.RefundAmount))
			}
			extra = append(extra, refund)
		}
	case lifecycle.NoticeNoShow:
		subject = "Missed Court Reservation"
		intro = "You did not check in for your court booking, so it was marked as a no-show."
	case lifecycle.NoticeReminder:
		subject = "Upcoming Court Reservation Reminder"
		intro = "Reminder: your court booking is coming up."
	default:
		return Message{}, false
	}

	lines := []string{
		intro,
		"",
		fmt.Sprintf("Court: %s", court),
		fmt.Sprintf("Date: %s", orDefault(details.Date, "TBD")),
		fmt.Sprintf("Time: %s", orDefault(details.TimeRange, "TBD")),
	}
	lines = append(lines, extra...)

	return Message{
		Subject: fmt.Sprintf("%s - %s", subject, court),
		Body:    strings.Join(lines, "\n"),
	}, true
}

func reasonLabel(reason string) string {
	if reason == lifecycle.CancelReasonSlotLost {
		return "The court was booked by someone else before your payment completed."
	}
	return reason
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
