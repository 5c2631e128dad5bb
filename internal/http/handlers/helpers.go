// Package handlers implements the portal's HTTP API on top of the booking,
// slot, treatment, and chat services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/chat"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/internal/users"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain errors onto HTTP statuses with a stable code the
// frontend can switch on.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointments.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required", Code: "not_authenticated"})
	case errors.Is(err, appointments.ErrProfileIncomplete):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "complete your profile before booking", Code: "profile_incomplete"})
	case errors.Is(err, appointments.ErrBookingTooSoon):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "appointments must be booked at least one hour in advance", Code: "booking_too_soon"})
	case errors.Is(err, appointments.ErrDateClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "the clinic is closed on that date", Code: "date_closed"})
	case errors.Is(err, slots.ErrSlotUnavailable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "that time is no longer available", Code: "slot_unavailable"})
	case errors.Is(err, appointments.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown appointment status", Code: "invalid_status"})
	case errors.Is(err, appointments.ErrAppointmentNotFound),
		errors.Is(err, slots.ErrSlotNotFound),
		errors.Is(err, treatments.ErrTreatmentNotFound),
		errors.Is(err, users.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, chat.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many questions, please wait a moment", Code: "rate_limited"})
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message cannot be empty", Code: "empty_message"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "bad_request"})
		return false
	}
	return true
}
