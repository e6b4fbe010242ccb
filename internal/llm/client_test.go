package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "test-model",
		Temperature: 0.7,
		HTTPClient:  srv.Client(),
	})
}

func TestComplete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, RoleUser, req.Messages[len(req.Messages)-1].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Paris."}},
			},
		})
	})

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are helpful."},
		{Role: RoleUser, Content: "Capital of France?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", reply)
}

func TestComplete_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Par", "is", "."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	reply, err := client.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}},
		func(delta string) error {
			deltas = append(deltas, delta)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", reply)
	assert.Equal(t, []string{"Par", "is", "."}, deltas)
}

func TestStream_CallbackErrorStops(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stop := errors.New("client went away")
	calls := 0
	_, err := client.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}},
		func(string) error {
			calls++
			if calls == 3 {
				return stop
			}
			return nil
		})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

func TestStream_NilCallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	reply, err := client.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestStream_EmptyStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	_, err := client.Stream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
