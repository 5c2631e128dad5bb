package handlers

import (
	"net/http"

	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/http/middleware"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// BookingHandler serves the patient-facing booking endpoints.
type BookingHandler struct {
	svc       *appointments.BookingService
	slotStore *slots.Store
	logger    *logging.Logger
}

// NewBookingHandler builds the handler.
func NewBookingHandler(svc *appointments.BookingService, slotStore *slots.Store, logger *logging.Logger) *BookingHandler {
	if svc == nil || slotStore == nil {
		panic("handlers: booking dependencies cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{svc: svc, slotStore: slotStore, logger: logger}
}

// Grid returns the whole weekly slot grid.
// GET /api/slots
func (h *BookingHandler) Grid(w http.ResponseWriter, r *http.Request) {
	grid := h.slotStore.FetchGrid(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"slots":       grid,
		"closedDates": h.slotStore.ClosedDates(r.Context()),
	})
}

// Availability returns the bookable start times for a date.
// GET /api/availability?date=YYYY-MM-DD
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date query parameter is required", Code: "bad_request"})
		return
	}
	times, err := h.svc.AvailableTimes(r.Context(), date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD", Code: "bad_request"})
		return
	}
	if times == nil {
		times = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "times": times})
}

// Create books an appointment for the authenticated user.
// POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	var req appointments.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	appt, warning, err := h.svc.Create(r.Context(), uid, req)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"appointment": appt}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Mine lists the authenticated user's appointments.
// GET /api/bookings/me
func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	appts, err := h.svc.ForUser(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}
