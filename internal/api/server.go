// Package api exposes the assistant over a JSON HTTP interface with SSE
// streaming for chat.
package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Alroma79/data-flywheel-chatbot/internal/botconfig"
	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/feedback"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

// defaultMaxUploadBytes caps knowledge uploads at 10 MiB.
const defaultMaxUploadBytes = 10 << 20

// ServerConfig contains everything needed to build the API server.
type ServerConfig struct {
	Logger         *slog.Logger
	Orchestrator   *chat.Orchestrator // Required
	Knowledge      *knowledge.Store   // Required
	Engine         *knowledge.Engine  // Required
	Sessions       *session.Store     // Required
	Feedback       *feedback.Store    // Required
	Profiles       *botconfig.Store   // Required
	DB             *sql.DB            // Required: backs the readiness probe
	APIToken       string             // Optional: guards admin endpoints when set
	CORSOrigins    []string           // Allowed origins for CORS
	TrustProxy     bool               // Trust X-Real-IP/X-Forwarded-For
	RateBurst      int                // Rate limiter burst per IP (0 = default 60)
	MaxUploadBytes int64              // Upload size cap (0 = 10 MiB)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Orchestrator == nil:
		return nil, errors.New("orchestrator is required")
	case cfg.Knowledge == nil || cfg.Engine == nil:
		return nil, errors.New("knowledge store and engine are required")
	case cfg.Sessions == nil:
		return nil, errors.New("session store is required")
	case cfg.Feedback == nil || cfg.Profiles == nil:
		return nil, errors.New("feedback and profile stores are required")
	case cfg.DB == nil:
		return nil, errors.New("database handle is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	ch := &chatHandler{orchestrator: cfg.Orchestrator, logger: logger}
	kh := &knowledgeHandler{store: cfg.Knowledge, engine: cfg.Engine, maxUploadBytes: maxUpload, logger: logger}
	sh := &sessionHandler{store: cfg.Sessions, logger: logger}
	fh := &feedbackHandler{store: cfg.Feedback, logger: logger}
	cfgh := &configHandler{store: cfg.Profiles, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat", ch.send)

	mux.HandleFunc("POST /api/v1/knowledge/files", kh.upload)
	mux.HandleFunc("GET /api/v1/knowledge/files", kh.list)
	mux.HandleFunc("GET /api/v1/knowledge/files/{id}", kh.get)
	mux.HandleFunc("DELETE /api/v1/knowledge/files/{id}", kh.delete)
	mux.HandleFunc("GET /api/v1/knowledge/search", kh.search)

	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	mux.HandleFunc("POST /api/v1/feedback", fh.create)
	mux.HandleFunc("GET /api/v1/config", cfgh.get)

	// Admin surface: reading collected feedback, the cross-session history
	// and changing the assistant profile require the API token when one is
	// configured.
	mux.HandleFunc("GET /api/v1/feedback", requireToken(cfg.APIToken, logger, fh.list))
	mux.HandleFunc("GET /api/v1/chat-history", requireToken(cfg.APIToken, logger, sh.history))
	mux.HandleFunc("POST /api/v1/config", requireToken(cfg.APIToken, logger, cfgh.update))

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id is available in log
	// attributes; CORS precedes RateLimit so preflight OPTIONS gets proper
	// CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.DB, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
