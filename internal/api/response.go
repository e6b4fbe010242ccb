package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so headers are only sent after successful
// encoding and a proper 500 can still be returned on failure.
func writeJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding json response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		logger.Debug("writing response body", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message}, logger)
}

// publicErrorMessage returns an error message safe to show callers.
// Validation errors describe the caller's mistake; everything else stays
// generic so internals never leak.
func publicErrorMessage(err error) string {
	if errors.Is(err, chat.ErrValidation) {
		return err.Error()
	}
	var genErr *chat.GenerationError
	if errors.As(err, &genErr) {
		return "reply generation failed"
	}
	return "internal server error"
}

// writeMappedError translates domain errors into HTTP error responses so
// callers can distinguish "no answer" from "system error".
func writeMappedError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var genErr *chat.GenerationError
	var storeErr *chat.StoreError

	switch {
	case errors.Is(err, chat.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), logger)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found", logger)
	case errors.Is(err, knowledge.ErrFileNotFound):
		writeError(w, http.StatusNotFound, "file_not_found", "knowledge file not found", logger)
	case errors.As(err, &genErr):
		logger.Error("generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "reply generation failed", logger)
	case errors.As(err, &storeErr):
		logger.Error("store failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	default:
		logger.Error("unexpected error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}
