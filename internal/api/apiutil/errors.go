package apiutil

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/policy"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/scheduling"
	"github.com/codr1/courtsched/internal/timeslot"
)

// ErrRateLimited is returned when a caller has used up its booking attempts.
var ErrRateLimited = errors.New("too many booking attempts")

// RateLimitError carries the time until the caller may retry.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string { return ErrRateLimited.Error() }

func (e RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Fields  []FieldError        `json:"fields,omitempty"`
	Windows []timeslot.Interval `json:"windows,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the struct's validate tags and reports failures as
// FieldErrors keyed by the JSON field name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Reason: reasonFor(fe)})
	}
	return fields
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	var herr HandlerError
	if errors.As(err, &herr) && herr.Status != 0 {
		return herr.Status
	}
	var fe FieldError
	var fes FieldErrors
	switch {
	case errors.As(err, &fe), errors.As(err, &fes),
		errors.Is(err, timeslot.ErrInvalidInterval),
		errors.Is(err, policy.ErrPolicyViolation),
		errors.Is(err, scheduling.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrSlotUnavailable),
		errors.Is(err, reservation.ErrSlotNoLongerAvailable):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrInvalidTransition),
		errors.Is(err, reservation.ErrTooEarly),
		errors.Is(err, reservation.ErrTooLate),
		errors.Is(err, reservation.ErrCannotCancelPastReservation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reservation.ErrNotFound),
		errors.Is(err, scheduling.ErrCourtNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, reservation.ErrPaymentFailed),
		errors.Is(err, reservation.ErrPaymentAmountMismatch):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body. Unexpected errors are logged
// and their text is not exposed.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: err.Error()}

	var fe FieldError
	var fes FieldErrors
	var pe policy.PolicyError
	var se reservation.SlotUnavailableError
	var rl RateLimitError
	switch {
	case errors.As(err, &fes):
		body.Fields = fes
	case errors.As(err, &fe):
		body.Fields = []FieldError{fe}
	case errors.As(err, &pe):
		body.Code = pe.Code
	case errors.As(err, &se):
		body.Windows = se.Windows
	case errors.As(err, &rl):
		if secs := int(rl.RetryAfter.Round(time.Second) / time.Second); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}

	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body = ErrorBody{Error: "internal server error"}
	}
	if writeErr := WriteJSON(w, status, body); writeErr != nil {
		log.Ctx(r.Context()).Error().Err(writeErr).Msg("Failed to write error response")
	}
}
