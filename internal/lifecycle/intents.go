package lifecycle

import "github.com/codr1/courtsched/internal/reservation"

type IntentKind string

const (
	IntentNotify    IntentKind = "notify"
	IntentRefund    IntentKind = "refund"
	IntentAnalytics IntentKind = "analytics"
)

// Notification templates.
const (
	NoticeCreated   = "created"
	NoticeConfirmed = "confirmed"
	NoticeCancelled = "cancelled"
	NoticeNoShow    = "no_show"
	// NoticeReminder is sent by the reminder job, not by a transition.
	NoticeReminder = "reminder"
)

// Analytics event names.
const (
	AnalyticsCreated   = "reservation.created"
	AnalyticsConfirmed = "reservation.confirmed"
	AnalyticsCancelled = "reservation.cancelled"
	AnalyticsCheckedIn = "reservation.checked_in"
	AnalyticsCompleted = "reservation.completed"
	AnalyticsNoShow    = "reservation.no_show"
	AnalyticsRaceLost  = "reservation.slot_lost"
)

// Intent is a side effect requested by a transition. The lifecycle never
// performs it; the scheduling service does after the change is stored.
type Intent struct {
	Kind IntentKind `json:"kind"`

	// Notify
	Template string `json:"template,omitempty"`

	// Refund
	PaymentID  string `json:"payment_id,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
	Percentage int64  `json:"percentage,omitempty"`

	// Analytics
	Event string `json:"event,omitempty"`
}

// Outcome is the result of applying an event.
type Outcome struct {
	Reservation reservation.Reservation
	Intents     []Intent
}

func notify(template string) Intent {
	return Intent{Kind: IntentNotify, Template: template}
}

func analytics(event string) Intent {
	return Intent{Kind: IntentAnalytics, Event: event}
}
