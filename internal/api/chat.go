package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
)

// maxChatBodyBytes bounds the chat request body. Messages are capped at a
// few thousand runes anyway; this just stops abuse before JSON decoding.
const maxChatBodyBytes = 64 * 1024

type chatHandler struct {
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream,omitempty"`
}

// chunkEvent is one SSE text delta.
type chunkEvent struct {
	Delta string `json:"delta"`
}

// doneEvent terminates a successful SSE stream with the full result.
type doneEvent struct {
	SessionID string              `json:"session_id"`
	Reply     string              `json:"reply"`
	Sources   []knowledge.Snippet `json:"sources,omitempty"`
}

// errorEvent terminates a failed SSE stream.
type errorEvent struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// send handles POST /api/v1/chat, blocking or streaming depending on the
// request's stream flag.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}

	if req.Stream {
		h.stream(w, r, req)
		return
	}

	res, err := h.orchestrator.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, res, h.logger)
}

// stream delivers the reply as SSE: "chunk" events carry text deltas, a
// final "done" event carries the complete result with attribution, and an
// "error" event reports failures. Errors after the first chunk cannot
// change the HTTP status anymore; the error event is all the client gets.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request, req chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	res, err := h.orchestrator.HandleTurnStream(r.Context(), req.SessionID, req.Message,
		func(delta string) error {
			return writeEvent(w, flusher, "chunk", chunkEvent{Delta: delta})
		})
	if err != nil {
		h.logger.Warn("streamed turn failed", "error", err)
		_ = writeEvent(w, flusher, "error", errorEvent{
			Error:   "turn_failed",
			Message: publicErrorMessage(err),
		})
		return
	}

	_ = writeEvent(w, flusher, "done", doneEvent{
		SessionID: res.SessionID,
		Reply:     res.Reply,
		Sources:   res.Snippets,
	})
}

// writeEvent writes one SSE event and flushes it to the client.
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}
