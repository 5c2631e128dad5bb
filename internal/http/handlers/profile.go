package handlers

import (
	"net/http"

	"github.com/esthetix/clinic-portal/internal/http/middleware"
	"github.com/esthetix/clinic-portal/internal/users"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// ProfileHandler serves the authenticated user's contact profile.
type ProfileHandler struct {
	store  *users.Store
	logger *logging.Logger
}

// NewProfileHandler builds the handler.
func NewProfileHandler(store *users.Store, logger *logging.Logger) *ProfileHandler {
	if store == nil {
		panic("handlers: user store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ProfileHandler{store: store, logger: logger}
}

// Get returns the caller's profile.
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	profile, err := h.store.Get(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  profile,
		"complete": profile.Complete(),
	})
}

// Put upserts the caller's profile. The uid always comes from the token, so
// one user cannot edit another's record.
// PUT /api/profile
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())

	var profile users.Profile
	if !decodeBody(w, r, &profile) {
		return
	}
	profile.UID = uid

	if err := h.store.Put(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profile":  profile,
		"complete": profile.Complete(),
	})
}
