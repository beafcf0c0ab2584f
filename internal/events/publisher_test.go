package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/codr1/courtsched/internal/lifecycle"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/timeslot"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishWrapsReservationInEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "reservation.events")
	at := time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	r := reservation.Reservation{
		ID:       5,
		CourtID:  2,
		UserID:   "member-42",
		Date:     civil.Date{Year: 2026, Month: time.October, Day: 20},
		Interval: timeslot.Interval{Start: timeslot.MustParse("10:00"), End: timeslot.MustParse("11:30")},
		Status:   reservation.StatusConfirmed,
	}
	if err := p.Publish(context.Background(), lifecycle.AnalyticsConfirmed, r); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(ch.published) != 1 {
		t.Fatalf("published %d messages", len(ch.published))
	}
	got := ch.published[0]
	if got.exchange != "reservation.events" || got.key != lifecycle.AnalyticsConfirmed {
		t.Fatalf("routing = %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("message properties = %+v", got.msg)
	}

	var envelope Envelope
	if err := json.Unmarshal(got.msg.Body, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.ID == "" || envelope.ID != got.msg.MessageId {
		t.Fatalf("envelope id %q, message id %q", envelope.ID, got.msg.MessageId)
	}
	if envelope.Reservation.ID != 5 || !envelope.OccurredAt.Equal(at) {
		t.Fatalf("envelope = %+v", envelope)
	}
	if envelope.Reservation.Date != r.Date || envelope.Reservation.Interval != r.Interval {
		t.Fatalf("reservation window = %s %s, want %s %s",
			envelope.Reservation.Date, envelope.Reservation.Interval, r.Date, r.Interval)
	}
}

func TestPublishReturnsChannelError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := newPublisher(ch, "reservation.events")

	err := p.Publish(context.Background(), lifecycle.AnalyticsCreated, reservation.Reservation{ID: 1})
	if !errors.Is(err, amqp.ErrClosed) {
		t.Fatalf("err = %v", err)
	}
	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: %v closed=%v", err, ch.closed)
	}
}
