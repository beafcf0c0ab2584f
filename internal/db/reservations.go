package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/scheduling"
	"github.com/codr1/courtsched/internal/timeslot"
)

const reservationColumns = `id, court_id, user_id, date, start_minutes, end_minutes, status,
	total_amount, payment_id, refund_percentage, refund_amount, checked_in_at, checked_out_at,
	cancelled_at, cancelled_by, cancel_reason, created_at, updated_at`

// blockingStatuses must match reservation.Status.BlocksCourt.
const blockingStatuses = `('pending', 'confirmed', 'checked_in')`

func scanReservation(row interface{ Scan(...any) error }) (reservation.Reservation, error) {
	var (
		r                 reservation.Reservation
		date, status      string
		start, end        int
		paymentID         sql.NullString
		refundPercentage  sql.NullInt64
		refundAmount      sql.NullInt64
		checkedIn, out    sql.NullTime
		cancelledAt       sql.NullTime
		createdAt, update time.Time
	)
	err := row.Scan(&r.ID, &r.CourtID, &r.UserID, &date, &start, &end, &status,
		&r.TotalAmount, &paymentID, &refundPercentage, &refundAmount, &checkedIn, &out,
		&cancelledAt, &r.CancelledBy, &r.CancelReason, &createdAt, &update)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if r.Date, err = civil.ParseDate(date); err != nil {
		return reservation.Reservation{}, fmt.Errorf("reservation %d date: %w", r.ID, err)
	}
	if r.Status, err = reservation.ParseStatus(status); err != nil {
		return reservation.Reservation{}, fmt.Errorf("reservation %d: %w", r.ID, err)
	}
	r.Interval = timeslot.Interval{Start: timeslot.TimeOfDay(start), End: timeslot.TimeOfDay(end)}
	if paymentID.Valid {
		r.PaymentID = &paymentID.String
	}
	if refundPercentage.Valid {
		r.RefundPercentage = &refundPercentage.Int64
	}
	if refundAmount.Valid {
		r.RefundAmount = &refundAmount.Int64
	}
	r.CheckedInAt = timePtr(checkedIn)
	r.CheckedOutAt = timePtr(out)
	r.CancelledAt = timePtr(cancelledAt)
	r.CreatedAt = createdAt.UTC()
	r.UpdatedAt = update.UTC()
	return r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (db *DB) queryReservations(ctx context.Context, query string, args ...any) ([]reservation.Reservation, error) {
	rows, err := db.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadActiveReservations implements scheduling.Store.
func (db *DB) LoadActiveReservations(ctx context.Context, courtID int64, date civil.Date) ([]reservation.Reservation, error) {
	out, err := db.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE court_id = ? AND date = ? AND status IN `+blockingStatuses+`
		ORDER BY start_minutes`, courtID, date.String())
	if err != nil {
		return nil, fmt.Errorf("load active reservations of court %d on %s: %w", courtID, date, err)
	}
	return out, nil
}

// ListReservationsForDate returns every reservation of courtID on date,
// whatever its status.
func (db *DB) ListReservationsForDate(ctx context.Context, courtID int64, date civil.Date) ([]reservation.Reservation, error) {
	out, err := db.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE court_id = ? AND date = ? ORDER BY start_minutes, id`, courtID, date.String())
	if err != nil {
		return nil, fmt.Errorf("list reservations of court %d on %s: %w", courtID, date, err)
	}
	return out, nil
}

// LoadByID implements scheduling.Store.
func (db *DB) LoadByID(ctx context.Context, id int64) (reservation.Reservation, error) {
	r, err := scanReservation(db.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.Reservation{}, fmt.Errorf("reservation %d: %w", id, reservation.ErrNotFound)
	}
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("load reservation %d: %w", id, err)
	}
	return r, nil
}

// InsertReservation implements scheduling.Store. An active reservation is
// checked for overlap against the stored ones in the same statement
// sequence, so the table itself never holds a double booking.
func (db *DB) InsertReservation(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	err := db.RunInTx(ctx, func(tx *DB) error {
		var tz string
		err := tx.q.QueryRowContext(ctx, `SELECT timezone FROM courts WHERE id = ?`, r.CourtID).Scan(&tz)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("court %d: %w", r.CourtID, scheduling.ErrCourtNotFound)
		}
		if err != nil {
			return err
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", tz, err)
		}

		if r.Active() {
			windows, err := tx.overlapping(ctx, r.CourtID, r.Date, r.Interval, 0)
			if err != nil {
				return err
			}
			if len(windows) > 0 {
				return reservation.SlotUnavailableError{Windows: windows}
			}
		}

		now := time.Now().UTC()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}
		res, err := tx.q.ExecContext(ctx, `INSERT INTO reservations (court_id, user_id, date,
			start_minutes, end_minutes, starts_at, status, total_amount, payment_id, refund_percentage,
			refund_amount, checked_in_at, checked_out_at, cancelled_at, cancelled_by, cancel_reason,
			created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.CourtID, r.UserID, r.Date.String(), int(r.Interval.Start), int(r.Interval.End),
			r.StartsAt(loc).UTC(), string(r.Status), r.TotalAmount, r.PaymentID, r.RefundPercentage,
			r.RefundAmount, nullTime(r.CheckedInAt), nullTime(r.CheckedOutAt), nullTime(r.CancelledAt),
			r.CancelledBy, r.CancelReason, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		r.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	return r, nil
}

func (db *DB) overlapping(ctx context.Context, courtID int64, date civil.Date, iv timeslot.Interval, excludeID int64) ([]timeslot.Interval, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT start_minutes, end_minutes FROM reservations
		WHERE court_id = ? AND date = ? AND status IN `+blockingStatuses+`
		AND start_minutes < ? AND end_minutes > ? AND id != ?
		ORDER BY start_minutes`,
		courtID, date.String(), int(iv.End), int(iv.Start), excludeID)
	if err != nil {
		return nil, fmt.Errorf("check overlapping reservations: %w", err)
	}
	defer rows.Close()
	var windows []timeslot.Interval
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		windows = append(windows, timeslot.Interval{Start: timeslot.TimeOfDay(start), End: timeslot.TimeOfDay(end)})
	}
	return windows, rows.Err()
}

// SaveReservation implements scheduling.Store. Only lifecycle fields are
// written; the court, date and window of a reservation never change.
func (db *DB) SaveReservation(ctx context.Context, r reservation.Reservation) error {
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	res, err := db.q.ExecContext(ctx, `UPDATE reservations SET status = ?, total_amount = ?,
		payment_id = ?, refund_percentage = ?, refund_amount = ?, checked_in_at = ?,
		checked_out_at = ?, cancelled_at = ?, cancelled_by = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), r.TotalAmount, r.PaymentID, r.RefundPercentage, r.RefundAmount,
		nullTime(r.CheckedInAt), nullTime(r.CheckedOutAt), nullTime(r.CancelledAt),
		r.CancelledBy, r.CancelReason, updated.UTC(), r.ID)
	if err != nil {
		return fmt.Errorf("save reservation %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reservation %d: %w", r.ID, reservation.ErrNotFound)
	}
	return nil
}

// ListReservationsStartingBetween returns the confirmed reservations whose
// start lies in [from, to) and that have not been reminded yet.
func (db *DB) ListReservationsStartingBetween(ctx context.Context, from, to time.Time) ([]reservation.Reservation, error) {
	out, err := db.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'confirmed' AND reminder_sent_at IS NULL
		AND starts_at >= ? AND starts_at < ?
		ORDER BY starts_at, id`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list reservations starting between %s and %s: %w", from, to, err)
	}
	return out, nil
}

// MarkReminderSent records that the reminder for reservation id went out.
func (db *DB) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	if _, err := db.q.ExecContext(ctx, `UPDATE reservations SET reminder_sent_at = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("mark reminder sent for reservation %d: %w", id, err)
	}
	return nil
}
