// Package llm is a minimal client for OpenAI-compatible chat completion
// APIs. It supports blocking completion and SSE streaming; any endpoint
// speaking the /chat/completions wire format works, including local
// runtimes such as Ollama or vLLM.
package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrEmptyCompletion is returned when the API answers successfully but
// produces no choices or no content.
var ErrEmptyCompletion = errors.New("completion contained no content")

// APIError is a non-2xx response from the completion endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API returned status %d: %s", e.Status, e.Body)
}

// Message is one entry of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles in the completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model names the completion model.
	Model string

	Temperature float32
	MaxTokens   int

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to one OpenAI-compatible endpoint. It is safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a Client. Generations can run long, so the default
// HTTP client carries a generous timeout.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{cfg: cfg, http: httpClient}
}
