// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/api/apiutil"
	"github.com/codr1/courtsched/internal/lifecycle"
	"github.com/codr1/courtsched/internal/ratelimit"
	"github.com/codr1/courtsched/internal/reservation"
	"github.com/codr1/courtsched/internal/scheduling"
)

// Service is the part of the scheduling service these handlers use.
type Service interface {
	CreateReservation(ctx context.Context, req scheduling.CreateRequest) (reservation.Reservation, error)
	GetReservation(ctx context.Context, id int64) (reservation.Reservation, error)
	ConfirmPayment(ctx context.Context, id int64, result lifecycle.PaymentResult) (reservation.Reservation, error)
	CancelReservation(ctx context.Context, id int64, actorID, reason string) (scheduling.CancelResult, error)
	CheckIn(ctx context.Context, id int64) (reservation.Reservation, error)
	CheckOut(ctx context.Context, id int64) (reservation.Reservation, error)
}

var (
	mu         sync.RWMutex
	service    Service
	limiter    *ratelimit.Limiter
	trustProxy bool
)

const reservationRequestTimeout = 10 * time.Second

// InitHandlers must be called during server startup before handling requests.
// A nil limiter disables the booking rate limit.
func InitHandlers(svc Service, l *ratelimit.Limiter, trustProxyHeaders bool) {
	mu.Lock()
	defer mu.Unlock()
	service = svc
	limiter = l
	trustProxy = trustProxyHeaders
}

type createRequest struct {
	CourtID int64  `json:"court_id" validate:"gt=0"`
	UserID  string `json:"user_id" validate:"required,max=128"`
	Date    string `json:"date" validate:"required"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
}

type paymentRequest struct {
	Success   bool   `json:"success"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	PaymentID string `json:"payment_id" validate:"required_if=Success true"`
}

type cancelRequest struct {
	ActorID string `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"max=500"`
}

// POST /api/v1/reservations
func HandleReservationCreate(w http.ResponseWriter, r *http.Request) {
	svc, lim, proxy := load()
	if svc == nil {
		notInitialized(w, r)
		return
	}

	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err})
		return
	}
	if err := apiutil.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.ParseDateField(req.Date, "date")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	start, err := apiutil.ParseTimeField(req.Start, "start")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	end, err := apiutil.ParseTimeField(req.End, "end")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	if lim != nil {
		ip := ratelimit.GetClientIP(r, proxy)
		if result := lim.AllowBooking(req.UserID, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(req.UserID, ip, result)
			apiutil.WriteError(w, r, apiutil.RateLimitError{RetryAfter: result.RetryAfter})
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationRequestTimeout)
	defer cancel()

	created, err := svc.CreateReservation(ctx, scheduling.CreateRequest{
		CourtID: req.CourtID,
		UserID:  req.UserID,
		Date:    date,
		Start:   start,
		End:     end,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/reservations/%d", created.ID))
	writeJSON(w, r, http.StatusCreated, created)
}

// GET /api/v1/reservations/{id}
func HandleReservationGet(w http.ResponseWriter, r *http.Request) {
	withReservation(w, r, func(ctx context.Context, svc Service, id int64) (any, error) {
		return svc.GetReservation(ctx, id)
	})
}

// POST /api/v1/reservations/{id}/payment
func HandlePaymentConfirm(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err})
		return
	}
	if err := apiutil.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	withReservation(w, r, func(ctx context.Context, svc Service, id int64) (any, error) {
		return svc.ConfirmPayment(ctx, id, lifecycle.PaymentResult{
			Success:   req.Success,
			Amount:    req.Amount,
			PaymentID: req.PaymentID,
		})
	})
}

// POST /api/v1/reservations/{id}/cancel
func HandleReservationCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err})
		return
	}
	if err := apiutil.Validate(req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	withReservation(w, r, func(ctx context.Context, svc Service, id int64) (any, error) {
		return svc.CancelReservation(ctx, id, req.ActorID, req.Reason)
	})
}

// POST /api/v1/reservations/{id}/checkin
func HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	withReservation(w, r, func(ctx context.Context, svc Service, id int64) (any, error) {
		return svc.CheckIn(ctx, id)
	})
}

// POST /api/v1/reservations/{id}/checkout
func HandleCheckOut(w http.ResponseWriter, r *http.Request) {
	withReservation(w, r, func(ctx context.Context, svc Service, id int64) (any, error) {
		return svc.CheckOut(ctx, id)
	})
}

func withReservation(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, svc Service, id int64) (any, error)) {
	svc, _, _ := load()
	if svc == nil {
		notInitialized(w, r)
		return
	}
	id, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationRequestTimeout)
	defer cancel()

	result, err := fn(ctx, svc, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func notInitialized(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Error().Msg("Reservation handlers not initialized")
	apiutil.WriteError(w, r, fmt.Errorf("reservation handlers not initialized"))
}

func load() (Service, *ratelimit.Limiter, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return service, limiter, trustProxy
}
