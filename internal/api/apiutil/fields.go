package apiutil

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/codr1/courtsched/internal/timeslot"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// PathID reads the positive integer path wildcard name.
func PathID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(name), name)
}

// ParseDateField parses a YYYY-MM-DD calendar date.
func ParseDateField(raw string, field string) (civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return civil.Date{}, FieldError{Field: field, Reason: "is required"}
	}
	date, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, FieldError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return date, nil
}

// ParseTimeField parses an HH:MM time of day.
func ParseTimeField(raw string, field string) (timeslot.TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	t, err := timeslot.ParseTimeOfDay(raw)
	if err != nil {
		return 0, FieldError{Field: field, Reason: "must be a time in HH:MM format"}
	}
	return t, nil
}

// WindowQuery reads the date, start and end query parameters shared by the
// court endpoints.
func WindowQuery(r *http.Request) (civil.Date, timeslot.TimeOfDay, timeslot.TimeOfDay, error) {
	q := r.URL.Query()
	var errs FieldErrors
	date, err := ParseDateField(q.Get("date"), "date")
	collect(&errs, err)
	start, err := ParseTimeField(q.Get("start"), "start")
	collect(&errs, err)
	end, err := ParseTimeField(q.Get("end"), "end")
	collect(&errs, err)
	if len(errs) > 0 {
		return civil.Date{}, 0, 0, errs
	}
	return date, start, end, nil
}

func collect(errs *FieldErrors, err error) {
	if err == nil {
		return
	}
	var fe FieldError
	if errors.As(err, &fe) {
		*errs = append(*errs, fe)
		return
	}
	*errs = append(*errs, FieldError{Field: "request", Reason: err.Error()})
}
