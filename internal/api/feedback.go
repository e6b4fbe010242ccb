package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Alroma79/data-flywheel-chatbot/internal/botconfig"
	"github.com/Alroma79/data-flywheel-chatbot/internal/feedback"
)

type feedbackHandler struct {
	store  *feedback.Store
	logger *slog.Logger
}

// create handles POST /api/v1/feedback.
func (h *feedbackHandler) create(w http.ResponseWriter, r *http.Request) {
	var entry feedback.Entry
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}

	stored, err := h.store.Add(r.Context(), entry)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusCreated, stored, h.logger)
}

// list handles GET /api/v1/feedback. Token-protected when a token is set.
func (h *feedbackHandler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(r.Context(), 0)
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []feedback.Entry{}
	}
	writeJSON(w, http.StatusOK, entries, h.logger)
}

type configHandler struct {
	store  *botconfig.Store
	logger *slog.Logger
}

// get handles GET /api/v1/config, returning the current default profile.
func (h *configHandler) get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.store.Current(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, profile, h.logger)
}

// update handles POST /api/v1/config, persisting a new profile version.
// Changes take effect on the next application start.
func (h *configHandler) update(w http.ResponseWriter, r *http.Request) {
	var profile botconfig.Profile
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}

	saved, err := h.store.Save(r.Context(), profile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), h.logger)
		return
	}
	writeJSON(w, http.StatusOK, saved, h.logger)
}
