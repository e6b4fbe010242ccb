// Package testutil holds shared test doubles and helpers.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/Alroma79/data-flywheel-chatbot/internal/llm"
)

// MockGenerator provides deterministic replies for testing. It matches the
// last user message against registered patterns and returns the
// corresponding reply; the fallback is used when nothing matches.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	err      error
	calls    []MockCall
}

type mockRule struct {
	pattern string // case-insensitive substring of the last user message
	reply   string
}

// MockCall records one invocation of the mock.
type MockCall struct {
	Window []llm.Message
	Reply  string
}

// NewMockGenerator creates a mock returning fallback when no pattern
// matches.
func NewMockGenerator(fallback string) *MockGenerator {
	return &MockGenerator{fallback: fallback}
}

// AddReply registers a pattern-reply pair. Patterns are checked in
// registration order; first match wins.
func (m *MockGenerator) AddReply(pattern, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), reply: reply})
}

// Fail makes every subsequent call return err instead of a reply.
func (m *MockGenerator) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of every recorded call.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// LastWindow returns the context window of the most recent call, or nil if
// the mock was never invoked.
func (m *MockGenerator) LastWindow() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Window
}

// Complete implements chat.Generator.
func (m *MockGenerator) Complete(_ context.Context, messages []llm.Message) (string, error) {
	return m.reply(messages)
}

// Stream implements chat.Generator, delivering the reply word by word.
func (m *MockGenerator) Stream(_ context.Context, messages []llm.Message, fn func(delta string) error) (string, error) {
	reply, err := m.reply(messages)
	if err != nil {
		return "", err
	}
	if fn != nil {
		words := strings.SplitAfter(reply, " ")
		for _, w := range words {
			if err := fn(w); err != nil {
				return "", err
			}
		}
	}
	return reply, nil
}

func (m *MockGenerator) reply(messages []llm.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}

	user := strings.ToLower(lastUserMessage(messages))
	reply := m.fallback
	for _, r := range m.rules {
		if strings.Contains(user, r.pattern) {
			reply = r.reply
			break
		}
	}

	window := make([]llm.Message, len(messages))
	copy(window, messages)
	m.calls = append(m.calls, MockCall{Window: window, Reply: reply})
	return reply, nil
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
