// internal/api/courts/handlers.go
package courts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtsched/internal/api/apiutil"
	"github.com/codr1/courtsched/internal/availability"
	"github.com/codr1/courtsched/internal/conflict"
	appdb "github.com/codr1/courtsched/internal/db"
	"github.com/codr1/courtsched/internal/timeslot"
)

// Queries is the read side of the scheduling service.
type Queries interface {
	GetAvailableSlots(ctx context.Context, courtID int64, date civil.Date) (availability.Result, error)
	CheckAvailability(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) (bool, error)
	DetectConflicts(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) ([]conflict.Detail, error)
	GetCourtAvailabilityCalendar(ctx context.Context, courtID int64, from, to civil.Date) ([]availability.Result, error)
	Quote(ctx context.Context, courtID int64, date civil.Date, start, end timeslot.TimeOfDay) (int64, error)
}

// Store manages court records and their policies.
type Store interface {
	ListCourts(ctx context.Context) ([]appdb.Court, error)
	GetCourt(ctx context.Context, courtID int64) (appdb.Court, error)
	UpsertCourt(ctx context.Context, c appdb.Court) (appdb.Court, error)
}

var (
	mu      sync.RWMutex
	queries Queries
	store   Store
)

const courtsQueryTimeout = 5 * time.Second

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q Queries, s Store) {
	mu.Lock()
	defer mu.Unlock()
	queries = q
	store = s
}

type availabilityResponse struct {
	CourtID   int64             `json:"court_id"`
	Date      civil.Date        `json:"date"`
	Interval  timeslot.Interval `json:"interval"`
	Available bool              `json:"available"`
}

type conflictsResponse struct {
	CourtID   int64             `json:"court_id"`
	Date      civil.Date        `json:"date"`
	Interval  timeslot.Interval `json:"interval"`
	Conflicts []conflict.Detail `json:"conflicts"`
}

type quoteResponse struct {
	CourtID  int64             `json:"court_id"`
	Date     civil.Date        `json:"date"`
	Interval timeslot.Interval `json:"interval"`
	Amount   int64             `json:"amount"`
}

// GET /api/v1/courts
func HandleCourtsList(w http.ResponseWriter, r *http.Request) {
	_, s := load()
	if s == nil {
		notInitialized(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	list, err := s.ListCourts(ctx)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []appdb.Court{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

// GET /api/v1/courts/{id}
func HandleCourtGet(w http.ResponseWriter, r *http.Request) {
	_, s := load()
	if s == nil {
		notInitialized(w, r)
		return
	}
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	court, err := s.GetCourt(ctx, courtID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, court)
}

// POST /api/v1/courts
func HandleCourtCreate(w http.ResponseWriter, r *http.Request) {
	saveCourt(w, r, 0)
}

// PUT /api/v1/courts/{id}
func HandleCourtUpdate(w http.ResponseWriter, r *http.Request) {
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	saveCourt(w, r, courtID)
}

func saveCourt(w http.ResponseWriter, r *http.Request, courtID int64) {
	_, s := load()
	if s == nil {
		notInitialized(w, r)
		return
	}
	var court appdb.Court
	if err := apiutil.DecodeJSON(r, &court); err != nil {
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err})
		return
	}
	court.ID = courtID

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	saved, err := s.UpsertCourt(ctx, court)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int64("court_id", saved.ID).Str("name", saved.Name).Msg("Court saved")

	status := http.StatusOK
	if courtID == 0 {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/courts/%d", saved.ID))
	}
	writeJSON(w, r, status, saved)
}

// GET /api/v1/courts/{id}/slots?date=
func HandleSlots(w http.ResponseWriter, r *http.Request) {
	withCourt(w, r, func(ctx context.Context, q Queries, courtID int64) (any, error) {
		date, err := apiutil.ParseDateField(r.URL.Query().Get("date"), "date")
		if err != nil {
			return nil, err
		}
		return q.GetAvailableSlots(ctx, courtID, date)
	})
}

// GET /api/v1/courts/{id}/availability?date=&start=&end=
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	withCourt(w, r, func(ctx context.Context, q Queries, courtID int64) (any, error) {
		date, start, end, err := apiutil.WindowQuery(r)
		if err != nil {
			return nil, err
		}
		ok, err := q.CheckAvailability(ctx, courtID, date, start, end)
		if err != nil {
			return nil, err
		}
		return availabilityResponse{CourtID: courtID, Date: date, Interval: timeslot.Interval{Start: start, End: end}, Available: ok}, nil
	})
}

// GET /api/v1/courts/{id}/conflicts?date=&start=&end=
func HandleConflicts(w http.ResponseWriter, r *http.Request) {
	withCourt(w, r, func(ctx context.Context, q Queries, courtID int64) (any, error) {
		date, start, end, err := apiutil.WindowQuery(r)
		if err != nil {
			return nil, err
		}
		details, err := q.DetectConflicts(ctx, courtID, date, start, end)
		if err != nil {
			return nil, err
		}
		if details == nil {
			details = []conflict.Detail{}
		}
		return conflictsResponse{CourtID: courtID, Date: date, Interval: timeslot.Interval{Start: start, End: end}, Conflicts: details}, nil
	})
}

// GET /api/v1/courts/{id}/calendar?from=&to=
func HandleCalendar(w http.ResponseWriter, r *http.Request) {
	withCourt(w, r, func(ctx context.Context, q Queries, courtID int64) (any, error) {
		query := r.URL.Query()
		from, fromErr := apiutil.ParseDateField(query.Get("from"), "from")
		to, toErr := apiutil.ParseDateField(query.Get("to"), "to")
		if err := errors.Join(fromErr, toErr); err != nil {
			return nil, fieldErrors(fromErr, toErr)
		}
		days, err := q.GetCourtAvailabilityCalendar(ctx, courtID, from, to)
		if err != nil {
			return nil, err
		}
		if days == nil {
			days = []availability.Result{}
		}
		return days, nil
	})
}

// GET /api/v1/courts/{id}/quote?date=&start=&end=
func HandleQuote(w http.ResponseWriter, r *http.Request) {
	withCourt(w, r, func(ctx context.Context, q Queries, courtID int64) (any, error) {
		date, start, end, err := apiutil.WindowQuery(r)
		if err != nil {
			return nil, err
		}
		amount, err := q.Quote(ctx, courtID, date, start, end)
		if err != nil {
			return nil, err
		}
		return quoteResponse{CourtID: courtID, Date: date, Interval: timeslot.Interval{Start: start, End: end}, Amount: amount}, nil
	})
}

func withCourt(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, q Queries, courtID int64) (any, error)) {
	q, _ := load()
	if q == nil {
		notInitialized(w, r)
		return
	}
	courtID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	result, err := fn(ctx, q, courtID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func fieldErrors(errs ...error) error {
	var out apiutil.FieldErrors
	for _, err := range errs {
		var fe apiutil.FieldError
		if errors.As(err, &fe) {
			out = append(out, fe)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func notInitialized(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Error().Msg("Court handlers not initialized")
	apiutil.WriteError(w, r, errors.New("court handlers not initialized"))
}

func load() (Queries, Store) {
	mu.RLock()
	defer mu.RUnlock()
	return queries, store
}
