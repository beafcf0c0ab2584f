// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/courtsched/internal/api"
	"github.com/codr1/courtsched/internal/api/apiutil"
	"github.com/codr1/courtsched/internal/api/courts"
	"github.com/codr1/courtsched/internal/api/reservations"
	"github.com/codr1/courtsched/internal/config"
)

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	reservations.InitHandlers(a.service, a.limiter, cfg.App.TrustProxyHeaders)
	courts.InitHandlers(a.service, a.db)
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Reservation routes
	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleReservationCreate)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleReservationGet)
	mux.HandleFunc("POST /api/v1/reservations/{id}/payment", reservations.HandlePaymentConfirm)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", reservations.HandleReservationCancel)
	mux.HandleFunc("POST /api/v1/reservations/{id}/checkin", reservations.HandleCheckIn)
	mux.HandleFunc("POST /api/v1/reservations/{id}/checkout", reservations.HandleCheckOut)

	// Court routes
	mux.HandleFunc("GET /api/v1/courts", courts.HandleCourtsList)
	mux.HandleFunc("POST /api/v1/courts", courts.HandleCourtCreate)
	mux.HandleFunc("GET /api/v1/courts/{id}", courts.HandleCourtGet)
	mux.HandleFunc("PUT /api/v1/courts/{id}", courts.HandleCourtUpdate)
	mux.HandleFunc("GET /api/v1/courts/{id}/slots", courts.HandleSlots)
	mux.HandleFunc("GET /api/v1/courts/{id}/availability", courts.HandleAvailability)
	mux.HandleFunc("GET /api/v1/courts/{id}/conflicts", courts.HandleConflicts)
	mux.HandleFunc("GET /api/v1/courts/{id}/calendar", courts.HandleCalendar)
	mux.HandleFunc("GET /api/v1/courts/{id}/quote", courts.HandleQuote)
}
