package email

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/db"
	"github.com/codr1/courtsched/internal/reservation"
)

const notificationEmailTimeout = 5 * time.Second

// EmailSender delivers one plain-text email. SESClient implements it.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
	SendFrom(ctx context.Context, recipient, subject, body, sender string) error
}

// CourtLookup loads the court a reservation belongs to.
type CourtLookup interface {
	GetCourt(ctx context.Context, courtID int64) (db.Court, error)
}

// RecipientResolver maps the opaque user id of a reservation to an email
// address. An empty address skips the notice.
type RecipientResolver interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// UserIDAddress treats user ids that look like email addresses as the
// address itself.
type UserIDAddress struct{}

func (UserIDAddress) EmailFor(_ context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if strings.Contains(userID, "@") {
		return userID, nil
	}
	return "", nil
}

// Notifier emails reservation notices. Sends run in the background with
// their own timeout; Wait blocks until they finish.
type Notifier struct {
	sender     EmailSender
	courts     CourtLookup
	recipients RecipientResolver
	from       string

	wg sync.WaitGroup
}

func NewNotifier(sender EmailSender, courts CourtLookup, recipients RecipientResolver, from string) *Notifier {
	if recipients == nil {
		recipients = UserIDAddress{}
	}
	return &Notifier{sender: sender, courts: courts, recipients: recipients, from: from}
}

// Notify implements scheduling.Notifier.
func (n *Notifier) Notify(ctx context.Context, template string, r reservation.Reservation) error {
	if n == nil || n.sender == nil {
		return nil
	}
	logger := log.Ctx(ctx).With().
		Str("component", "email").
		Str("template", template).
		Int64("reservation_id", r.ID).
		Logger()

	recipient, err := n.recipients.EmailFor(ctx, r.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient for reservation %d: %w", r.ID, err)
	}
	if recipient == "" {
		logger.Debug().Msg("Skipping notice: no email address for user")
		return nil
	}

	message, err := n.build(ctx, template, r)
	if err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.send(ctx, recipient, message, &logger)
	}()
	return nil
}

func (n *Notifier) build(ctx context.Context, template string, r reservation.Reservation) (Message, error) {
	details := Details{
		TotalAmount:      r.TotalAmount,
		Reason:           r.CancelReason,
		RefundPercentage: r.RefundPercentage,
		RefundAmount:     r.RefundAmount,
	}
	loc := time.UTC
	if n.courts != nil {
		court, err := n.courts.GetCourt(ctx, r.CourtID)
		if err != nil {
			return Message{}, fmt.Errorf("load court for notice: %w", err)
		}
		details.CourtName = court.Name
		details.CancellationPolicy = court.Policy.Cancellation.Description
		loc = court.Policy.Loc()
	}
	details.Date, details.TimeRange = FormatDateTimeRange(r.StartsAt(loc), r.EndsAt(loc))

	message, ok := Build(template, details)
	if !ok {
		return Message{}, fmt.Errorf("unknown notice template %q", template)
	}
	return message, nil
}

func (n *Notifier) send(ctx context.Context, recipient string, message Message, logger *zerolog.Logger) {
	sendCtx, cancel := detachedContext(ctx, notificationEmailTimeout)
	defer cancel()
	if err := n.sender.SendFrom(sendCtx, recipient, message.Subject, message.Body, n.from); err != nil {
		logger.Error().Err(err).Msg("Failed to send notice email")
		return
	}
	logger.Info().Msg("Notice email sent")
}

// Wait blocks until every background send has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// detachedContext keeps the values of parent, including its logger, but not
// its cancellation, so a send outlives the request that triggered it.
func detachedContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
