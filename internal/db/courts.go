package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/scheduling"
	"github.com/codr1/courtsched/internal/timeslot"
)

// Court is a bookable court and the policy that governs it.
type Court struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	Policy policy.Policy `json:"policy"`
}

const courtColumns = `id, name, timezone, granularity_minutes, min_booking_minutes,
	max_booking_minutes, max_advance_booking_days, check_in_grace_minutes,
	hourly_rate, peak_hour_rate, weekend_rate, peak_hours, cancellation_description`

func scanCourt(row interface{ Scan(...any) error }) (Court, error) {
	var (
		c           Court
		peakRate    sql.NullInt64
		weekendRate sql.NullInt64
		peakHours   string
	)
	p := &c.Policy
	err := row.Scan(&c.ID, &c.Name, &p.Timezone, &p.GranularityMinutes, &p.MinBookingMinutes,
		&p.MaxBookingMinutes, &p.MaxAdvanceBookingDays, &p.CheckInGraceMinutes,
		&p.HourlyRate, &peakRate, &weekendRate, &peakHours, &p.Cancellation.Description)
	if err != nil {
		return Court{}, err
	}
	if peakRate.Valid {
		p.PeakHourRate = &peakRate.Int64
	}
	if weekendRate.Valid {
		p.WeekendRate = &weekendRate.Int64
	}
	if err := json.Unmarshal([]byte(peakHours), &p.PeakHours); err != nil {
		return Court{}, fmt.Errorf("decode peak hours of court %d: %w", c.ID, err)
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return Court{}, fmt.Errorf("load timezone %q of court %d: %w", p.Timezone, c.ID, err)
	}
	p.Location = loc
	return c, nil
}

// GetCourt loads a court with its operating hours and refund tiers.
func (db *DB) GetCourt(ctx context.Context, courtID int64) (Court, error) {
	c, err := scanCourt(db.q.QueryRowContext(ctx, `SELECT `+courtColumns+` FROM courts WHERE id = ?`, courtID))
	if errors.Is(err, sql.ErrNoRows) {
		return Court{}, fmt.Errorf("court %d: %w", courtID, scheduling.ErrCourtNotFound)
	}
	if err != nil {
		return Court{}, fmt.Errorf("load court %d: %w", courtID, err)
	}
	if err := db.loadOperatingHours(ctx, &c); err != nil {
		return Court{}, err
	}
	if err := db.loadRefundTiers(ctx, &c); err != nil {
		return Court{}, err
	}
	return c, nil
}

// ListCourts returns every court ordered by id.
func (db *DB) ListCourts(ctx context.Context) ([]Court, error) {
	rows, err := db.q.QueryContext(ctx, `SELECT `+courtColumns+` FROM courts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list courts: %w", err)
	}
	var courts []Court
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		courts = append(courts, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range courts {
		if err := db.loadOperatingHours(ctx, &courts[i]); err != nil {
			return nil, err
		}
		if err := db.loadRefundTiers(ctx, &courts[i]); err != nil {
			return nil, err
		}
	}
	return courts, nil
}

func (db *DB) loadOperatingHours(ctx context.Context, c *Court) error {
	rows, err := db.q.QueryContext(ctx, `SELECT day_of_week, opens_minutes, closes_minutes
		FROM operating_hours WHERE court_id = ?`, c.ID)
	if err != nil {
		return fmt.Errorf("load operating hours of court %d: %w", c.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var day, opens, closes int
		if err := rows.Scan(&day, &opens, &closes); err != nil {
			return err
		}
		c.Policy.OperatingHours[day] = policy.DayHours{
			Open:   true,
			Opens:  timeslot.TimeOfDay(opens),
			Closes: timeslot.TimeOfDay(closes),
		}
	}
	return rows.Err()
}

func (db *DB) loadRefundTiers(ctx context.Context, c *Court) error {
	rows, err := db.q.QueryContext(ctx, `SELECT min_hours_before, refund_percentage
		FROM cancellation_policy_tiers WHERE court_id = ? ORDER BY min_hours_before DESC`, c.ID)
	if err != nil {
		return fmt.Errorf("load refund tiers of court %d: %w", c.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier policy.RefundTier
		if err := rows.Scan(&tier.MinHoursBefore, &tier.RefundPercentage); err != nil {
			return err
		}
		c.Policy.Cancellation.Tiers = append(c.Policy.Cancellation.Tiers, tier)
	}
	return rows.Err()
}

// LoadCourtPolicy implements scheduling.Store.
func (db *DB) LoadCourtPolicy(ctx context.Context, courtID int64) (policy.Policy, error) {
	c, err := db.GetCourt(ctx, courtID)
	if err != nil {
		return policy.Policy{}, err
	}
	return c.Policy, nil
}

// UpsertCourt validates and stores c, replacing its operating hours and
// refund tiers. A zero ID inserts a new court.
func (db *DB) UpsertCourt(ctx context.Context, c Court) (Court, error) {
	if c.Name == "" {
		return Court{}, fmt.Errorf("%w: court name is required", scheduling.ErrInvalidRequest)
	}
	if c.Policy.Timezone == "" {
		c.Policy.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Policy.Timezone); err != nil {
		return Court{}, fmt.Errorf("%w: timezone %q: %v", scheduling.ErrInvalidRequest, c.Policy.Timezone, err)
	}
	if err := c.Policy.Validate(); err != nil {
		return Court{}, err
	}
	peakHours, err := json.Marshal(nonNilIntervals(c.Policy.PeakHours))
	if err != nil {
		return Court{}, fmt.Errorf("encode peak hours: %w", err)
	}

	err = db.RunInTx(ctx, func(tx *DB) error {
		p := c.Policy
		args := []any{c.Name, p.Timezone, p.Granularity(), p.MinBookingMinutes, p.MaxBookingMinutes,
			p.MaxAdvanceBookingDays, int(p.CheckInGrace() / time.Minute), p.HourlyRate, p.PeakHourRate, p.WeekendRate,
			string(peakHours), p.Cancellation.Description}
		if c.ID == 0 {
			res, err := tx.q.ExecContext(ctx, `INSERT INTO courts (name, timezone, granularity_minutes,
				min_booking_minutes, max_booking_minutes, max_advance_booking_days, check_in_grace_minutes,
				hourly_rate, peak_hour_rate, weekend_rate, peak_hours, cancellation_description)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
			if err != nil {
				return fmt.Errorf("insert court: %w", err)
			}
			if c.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		} else {
			res, err := tx.q.ExecContext(ctx, `UPDATE courts SET name = ?, timezone = ?, granularity_minutes = ?,
				min_booking_minutes = ?, max_booking_minutes = ?, max_advance_booking_days = ?,
				check_in_grace_minutes = ?, hourly_rate = ?, peak_hour_rate = ?, weekend_rate = ?,
				peak_hours = ?, cancellation_description = ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?`, append(args, c.ID)...)
			if err != nil {
				return fmt.Errorf("update court %d: %w", c.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("court %d: %w", c.ID, scheduling.ErrCourtNotFound)
			}
		}

		if _, err := tx.q.ExecContext(ctx, `DELETE FROM operating_hours WHERE court_id = ?`, c.ID); err != nil {
			return err
		}
		for day, hours := range p.OperatingHours {
			if !hours.Open {
				continue
			}
			if _, err := tx.q.ExecContext(ctx, `INSERT INTO operating_hours (court_id, day_of_week, opens_minutes, closes_minutes)
				VALUES (?, ?, ?, ?)`, c.ID, day, int(hours.Opens), int(hours.Closes)); err != nil {
				return fmt.Errorf("insert operating hours: %w", err)
			}
		}

		if _, err := tx.q.ExecContext(ctx, `DELETE FROM cancellation_policy_tiers WHERE court_id = ?`, c.ID); err != nil {
			return err
		}
		for _, tier := range p.Cancellation.Tiers {
			if _, err := tx.q.ExecContext(ctx, `INSERT INTO cancellation_policy_tiers (court_id, min_hours_before, refund_percentage)
				VALUES (?, ?, ?)`, c.ID, tier.MinHoursBefore, tier.RefundPercentage); err != nil {
				return fmt.Errorf("insert refund tier: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Court{}, err
	}
	return db.GetCourt(ctx, c.ID)
}

func nonNilIntervals(ivs []timeslot.Interval) []timeslot.Interval {
	if ivs == nil {
		return []timeslot.Interval{}
	}
	return ivs
}
