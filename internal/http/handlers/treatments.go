package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// TreatmentHandler serves the treatment catalog.
type TreatmentHandler struct {
	catalog *treatments.Catalog
	logger  *logging.Logger
}

// NewTreatmentHandler builds the handler.
func NewTreatmentHandler(catalog *treatments.Catalog, logger *logging.Logger) *TreatmentHandler {
	if catalog == nil {
		panic("handlers: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TreatmentHandler{catalog: catalog, logger: logger}
}

// List returns the whole catalog.
// GET /api/treatments
func (h *TreatmentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []treatments.Treatment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"treatments": list})
}

// Get returns one treatment page.
// GET /api/treatments/{pageName}
func (h *TreatmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.catalog.Get(r.Context(), chi.URLParam(r, "pageName"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treatment": t})
}

// Upsert creates or updates a treatment page.
// PUT /api/admin/treatments
func (h *TreatmentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var t treatments.Treatment
	if !decodeBody(w, r, &t) {
		return
	}
	if t.PageName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "pageName is required", Code: "bad_request"})
		return
	}
	if err := h.catalog.Put(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"treatment": t})
}
