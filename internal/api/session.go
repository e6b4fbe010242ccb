package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// create handles POST /api/v1/sessions.
func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Create(r.Context())
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, sess, h.logger)
}

// list handles GET /api/v1/sessions.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context())
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, sessions, h.logger)
}

// get handles GET /api/v1/sessions/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, sess, h.logger)
}

// messages handles GET /api/v1/sessions/{id}/messages.
func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	turns, err := h.store.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, turns, h.logger)
}

// history handles GET /api/v1/chat-history. It returns the newest turns
// across all sessions, newest first; ?limit= caps the count (default 100).
func (h *sessionHandler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	entries, err := h.store.RecentAcrossSessions(r.Context(), limit)
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []session.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

// delete handles DELETE /api/v1/sessions/{id}.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
