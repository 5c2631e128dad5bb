package handlers

import (
	"net/http"

	"github.com/esthetix/clinic-portal/internal/chat"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// ChatHandler serves the patient-facing assistant.
type ChatHandler struct {
	svc    *chat.Service
	logger *logging.Logger
}

// NewChatHandler builds the handler.
func NewChatHandler(svc *chat.Service, logger *logging.Logger) *ChatHandler {
	if svc == nil {
		panic("handlers: chat service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{svc: svc, logger: logger}
}

// Ask answers the conversation's last user message.
// POST /api/chat
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []chat.Message `json:"messages"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	reply, err := h.svc.Ask(r.Context(), req.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}
