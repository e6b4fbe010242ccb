package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Alroma79/data-flywheel-chatbot/internal/extract"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
)

type knowledgeHandler struct {
	store          *knowledge.Store
	engine         *knowledge.Engine
	maxUploadBytes int64
	logger         *slog.Logger
}

type uploadResponse struct {
	File      knowledge.File `json:"file"`
	Duplicate bool           `json:"duplicate"`
}

type searchResponse struct {
	Query   string              `json:"query"`
	Results []knowledge.Snippet `json:"results"`
}

// upload handles POST /api/v1/knowledge/files as a multipart form with a
// "file" field. Unsupported extensions are rejected before any bytes are
// stored; duplicate content is acknowledged with the existing record.
func (h *knowledgeHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds size limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "multipart form with a 'file' field is required", h.logger)
		return
	}
	defer file.Close()

	if !extract.SupportedFilename(header.Filename) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format",
			"supported formats: txt, md, pdf, docx", h.logger)
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds size limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "reading upload failed", h.logger)
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "empty_file", "uploaded file is empty", h.logger)
		return
	}

	stored, duplicate, err := h.store.Put(r.Context(), raw, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, uploadResponse{File: stored, Duplicate: duplicate}, h.logger)
}

// list handles GET /api/v1/knowledge/files.
func (h *knowledgeHandler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.ListActive(r.Context())
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if files == nil {
		files = []knowledge.File{}
	}
	writeJSON(w, http.StatusOK, files, h.logger)
}

// get handles GET /api/v1/knowledge/files/{id}.
func (h *knowledgeHandler) get(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, f, h.logger)
}

// delete handles DELETE /api/v1/knowledge/files/{id}.
func (h *knowledgeHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// search handles GET /api/v1/knowledge/search?q=..., exposing retrieval
// without generation.
func (h *knowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query parameter 'q' is required", h.logger)
		return
	}

	results, err := h.engine.Retrieve(r.Context(), query)
	if err != nil {
		writeMappedError(w, err, h.logger)
		return
	}
	if results == nil {
		results = []knowledge.Snippet{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results}, h.logger)
}
