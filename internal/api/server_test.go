package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alroma79/data-flywheel-chatbot/internal/botconfig"
	"github.com/Alroma79/data-flywheel-chatbot/internal/chat"
	"github.com/Alroma79/data-flywheel-chatbot/internal/database"
	"github.com/Alroma79/data-flywheel-chatbot/internal/feedback"
	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/log"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
	"github.com/Alroma79/data-flywheel-chatbot/internal/testutil"
)

type apiFixture struct {
	server    *Server
	generator *testutil.MockGenerator
	knowledge *knowledge.Store
	sessions  *session.Store
}

func newAPIFixture(t *testing.T, apiToken string) *apiFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	logger := log.NewNop()
	store, err := knowledge.NewStore(db, t.TempDir(), logger)
	require.NoError(t, err)
	chunker, err := knowledge.NewChunker(500, 50)
	require.NoError(t, err)
	engine := knowledge.NewEngine(store, chunker, 3, 2500, logger)
	sessions := session.NewStore(db, logger)
	assembler := chat.NewAssembler(sessions, "You are a helpful assistant.", 10)
	generator := testutil.NewMockGenerator("fallback reply")
	orchestrator := chat.NewOrchestrator(engine, assembler, sessions, generator, 4000, logger)

	server, err := NewServer(ServerConfig{
		Logger:       logger,
		Orchestrator: orchestrator,
		Knowledge:    store,
		Engine:       engine,
		Sessions:     sessions,
		Feedback:     feedback.NewStore(db, logger),
		Profiles:     botconfig.NewStore(db, logger),
		DB:           db,
		APIToken:     apiToken,
		CORSOrigins:  []string{"http://localhost:5173"},
		RateBurst:    1000,
	})
	require.NoError(t, err)

	return &apiFixture{server: server, generator: generator, knowledge: store, sessions: sessions}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func multipartUpload(t *testing.T, f *apiFixture, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChat_Blocking(t *testing.T) {
	f := newAPIFixture(t, "")
	f.generator.AddReply("capital of france", "Paris is the capital of France.")

	rec := multipartUpload(t, f, "geography.txt", "The capital of France is Paris.")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "what is the capital of France",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[chat.Result](t, rec)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Paris is the capital of France.", res.Reply)
	require.NotEmpty(t, res.Snippets)
	assert.Equal(t, "geography.txt", res.Snippets[0].Filename)
}

func TestChat_ValidationErrors(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errRes := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_failed", errRes.Error)

	rec = f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": strings.Repeat("x", 4001),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusBadRequest, rec2.Code)
}

func TestChat_Streaming(t *testing.T) {
	f := newAPIFixture(t, "")
	f.generator.AddReply("stream", "hello streamed world")

	rec := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "please stream",
		"stream":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	chunks := testutil.FindAllEvents(events, "chunk")
	require.NotEmpty(t, chunks)

	var assembled strings.Builder
	for _, c := range chunks {
		var payload struct {
			Delta string `json:"delta"`
		}
		require.NoError(t, json.Unmarshal([]byte(c.Data), &payload))
		assembled.WriteString(payload.Delta)
	}
	assert.Equal(t, "hello streamed world", assembled.String())

	done := testutil.FindEvent(events, "done")
	require.NotNil(t, done)
	var final doneEvent
	require.NoError(t, json.Unmarshal([]byte(done.Data), &final))
	assert.Equal(t, "hello streamed world", final.Reply)
	assert.NotEmpty(t, final.SessionID)
}

func TestChat_StreamingGenerationFailure(t *testing.T) {
	f := newAPIFixture(t, "")
	f.generator.Fail(fmt.Errorf("model offline"))

	rec := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": "hello",
		"stream":  true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	errEvent := testutil.FindEvent(events, "error")
	require.NotNil(t, errEvent)
	assert.Nil(t, testutil.FindEvent(events, "done"))
}

func TestKnowledge_UploadListDelete(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := multipartUpload(t, f, "notes.txt", "some note content")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[uploadResponse](t, rec)
	assert.False(t, created.Duplicate)
	assert.Equal(t, "notes.txt", created.File.Filename)

	// Duplicate content is acknowledged, not re-created.
	rec = multipartUpload(t, f, "notes-copy.txt", "some note content")
	require.Equal(t, http.StatusOK, rec.Code)
	dup := decode[uploadResponse](t, rec)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, created.File.ID, dup.File.ID)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	files := decode[[]knowledge.File](t, rec)
	assert.Len(t, files, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge/files/"+created.File.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/knowledge/files/"+created.File.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge/files/"+created.File.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKnowledge_UploadUnsupportedFormat(t *testing.T) {
	f := newAPIFixture(t, "")
	rec := multipartUpload(t, f, "binary.exe", "MZ...")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestKnowledge_Search(t *testing.T) {
	f := newAPIFixture(t, "")
	multipartUpload(t, f, "geography.txt", "The capital of France is Paris.")

	rec := f.do(t, http.MethodGet, "/api/v1/knowledge/search?q=capital+France", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[searchResponse](t, rec)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "geography.txt", res.Results[0].Filename)

	rec = f.do(t, http.MethodGet, "/api/v1/knowledge/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions_CRUD(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[session.Session](t, rec)
	require.NotEmpty(t, sess.ID)

	rec = f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{
		"session_id": sess.ID,
		"message":    "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	turns := decode[[]session.Turn](t, rec)
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decode[[]session.Session](t, rec)
	assert.NotEmpty(t, sessions)

	rec = f.do(t, http.MethodDelete, "/api/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeedback_PostAndProtectedList(t *testing.T) {
	f := newAPIFixture(t, "secret-token")

	rec := f.do(t, http.MethodPost, "/api/v1/feedback", map[string]any{
		"message": "the assistant reply",
		"rating":  "thumbs_up",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Listing without the token is rejected.
	rec = f.do(t, http.MethodGet, "/api/v1/feedback", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec2 := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)
	entries := decode[[]feedback.Entry](t, rec2)
	assert.Len(t, entries, 1)
}

func TestConfig_GetAndProtectedUpdate(t *testing.T) {
	f := newAPIFixture(t, "secret-token")

	rec := f.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/config", map[string]any{
		"system_prompt": "new prompt",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, err := json.Marshal(map[string]any{"system_prompt": "new prompt"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/config", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec2 := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[botconfig.Profile](t, rec)
	assert.Equal(t, "new prompt", profile.SystemPrompt)
}

func TestChatHistory_ProtectedCrossSessionListing(t *testing.T) {
	f := newAPIFixture(t, "secret-token")

	for _, msg := range []string{"first question", "second question"} {
		rec := f.do(t, http.MethodPost, "/api/v1/chat", map[string]any{"message": msg})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodGet, "/api/v1/chat-history", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat-history", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec2 := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code, rec2.Body.String())

	entries := decode[[]session.HistoryEntry](t, rec2)
	require.Len(t, entries, 4) // two user turns, two assistant turns

	// Two distinct sessions contributed turns.
	ids := make(map[string]bool)
	for _, e := range entries {
		ids[e.SessionID] = true
	}
	assert.Len(t, ids, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/chat-history?limit=broken", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec3 := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
}

func TestHealthProbes(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newAPIFixture(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(1.0, 2)
	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	// A different IP has its own bucket.
	assert.True(t, rl.allow("10.0.0.2"))
}
