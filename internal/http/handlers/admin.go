package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esthetix/clinic-portal/internal/appointments"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// AdminHandler serves the dashboard endpoints: appointment workflow plus
// slot and schedule maintenance.
type AdminHandler struct {
	workflow  *appointments.Workflow
	manager   *slots.Manager
	slotStore *slots.Store
	logger    *logging.Logger
}

// NewAdminHandler builds the handler.
func NewAdminHandler(workflow *appointments.Workflow, manager *slots.Manager, slotStore *slots.Store, logger *logging.Logger) *AdminHandler {
	if workflow == nil || manager == nil || slotStore == nil {
		panic("handlers: admin dependencies cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{workflow: workflow, manager: manager, slotStore: slotStore, logger: logger}
}

// ListAppointments returns every appointment.
// GET /api/admin/appointments
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := h.workflow.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts})
}

// SetStatus transitions one appointment.
// PATCH /api/admin/appointments/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status appointments.Status `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	appt, warning, err := h.workflow.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"appointment": appt}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetStatusBatch transitions many appointments, best-effort.
// POST /api/admin/appointments/status
func (h *AdminHandler) SetStatusBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []string            `json:"ids"`
		Status appointments.Status `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ids cannot be empty", Code: "bad_request"})
		return
	}

	updated, err := h.workflow.SetStatusBatch(r.Context(), req.IDs, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "requested": len(req.IDs)})
}

// DeleteAppointmentBatch removes many appointments, best-effort.
// POST /api/admin/appointments/delete
func (h *AdminHandler) DeleteAppointmentBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ids cannot be empty", Code: "bad_request"})
		return
	}

	deleted, err := h.workflow.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "requested": len(req.IDs)})
}

// DeleteAppointment removes an appointment record.
// DELETE /api/admin/appointments/{id}
func (h *AdminHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.workflow.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ToggleSlot flips one slot's availability.
// POST /api/admin/slots/{id}/toggle
func (h *AdminHandler) ToggleSlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	slot, err := h.manager.ToggleSlot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot})
}

// ToggleDate flips a calendar date between open and closed.
// POST /api/admin/dates/{date}/toggle
func (h *AdminHandler) ToggleDate(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	closed, err := h.manager.ToggleDateStatus(r.Context(), date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD", Code: "bad_request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "closed": closed})
}

// GetSchedule returns the last saved weekly template.
// GET /api/admin/schedule
func (h *AdminHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.slotStore.Template(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": tmpl})
}

// ApplySchedule replaces the slot grid from a weekly template.
// PUT /api/admin/schedule
func (h *AdminHandler) ApplySchedule(w http.ResponseWriter, r *http.Request) {
	var tmpl slots.WeeklyTemplate
	if !decodeBody(w, r, &tmpl) {
		return
	}

	count, err := h.manager.ApplyWeeklyTemplate(r.Context(), tmpl)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": count})
}
