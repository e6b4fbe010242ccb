// Package chat orchestrates one conversational turn: validation, knowledge
// retrieval, context assembly, generation and session persistence.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/llm"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

// Retriever returns ranked snippets for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]knowledge.Snippet, error)
}

// Generator produces a reply for an assembled context window, either
// blocking or as a stream of text deltas.
type Generator interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	Stream(ctx context.Context, messages []llm.Message, fn func(delta string) error) (string, error)
}

// Result is the outcome of one completed turn.
type Result struct {
	SessionID string              `json:"session_id"`
	Reply     string              `json:"reply"`
	Snippets  []knowledge.Snippet `json:"sources,omitempty"`
}

// Orchestrator is the single entry point for handling turns. Each call is
// independent: no state is carried between requests beyond the stores.
//
// Turns are persisted only after generation succeeds, so a failed or
// cancelled generation never leaves a partial assistant turn in the
// session; the user turn is withheld alongside it. There is no retry loop
// here, retrying a non-idempotent generation is the caller's decision.
type Orchestrator struct {
	retriever Retriever
	assembler *Assembler
	sessions  *session.Store
	generator Generator
	maxLen    int
	logger    *slog.Logger
}

// NewOrchestrator wires the collaborators for turn handling. maxMessageLen
// bounds the user message in runes; longer messages are rejected, not
// truncated.
func NewOrchestrator(retriever Retriever, assembler *Assembler, sessions *session.Store, generator Generator, maxMessageLen int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		retriever: retriever,
		assembler: assembler,
		sessions:  sessions,
		generator: generator,
		maxLen:    maxMessageLen,
		logger:    logger,
	}
}

// HandleTurn runs one blocking turn and returns the reply plus attribution.
// An empty sessionID starts a new session; the returned Result carries the
// identifier either way.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, message string) (Result, error) {
	return o.handle(ctx, sessionID, message, func(ctx context.Context, window []llm.Message) (string, error) {
		return o.generator.Complete(ctx, window)
	})
}

// HandleTurnStream runs one turn delivering reply deltas through fn as they
// are produced. Partial output already delivered is not retracted on
// failure, but nothing is persisted either.
func (o *Orchestrator) HandleTurnStream(ctx context.Context, sessionID, message string, fn func(delta string) error) (Result, error) {
	return o.handle(ctx, sessionID, message, func(ctx context.Context, window []llm.Message) (string, error) {
		return o.generator.Stream(ctx, window, fn)
	})
}

func (o *Orchestrator) handle(ctx context.Context, sessionID, message string, generate func(context.Context, []llm.Message) (string, error)) (Result, error) {
	message, err := o.sanitize(message)
	if err != nil {
		return Result{}, err
	}

	sess, err := o.sessions.Ensure(ctx, sessionID)
	if err != nil {
		return Result{}, &StoreError{Op: "ensuring session", Err: err}
	}

	snippets, err := o.retriever.Retrieve(ctx, message)
	if err != nil {
		return Result{}, &StoreError{Op: "retrieving knowledge", Err: err}
	}

	window, err := o.assembler.Assemble(ctx, sess.ID, message, snippets)
	if err != nil {
		return Result{}, err
	}

	reply, err := generate(ctx, window)
	if err != nil {
		return Result{}, &GenerationError{Err: err}
	}

	err = o.sessions.Append(ctx, sess.ID,
		session.Turn{Role: session.RoleUser, Content: message},
		session.Turn{Role: session.RoleAssistant, Content: reply},
	)
	if err != nil {
		return Result{}, &StoreError{Op: "appending turns", Err: err}
	}

	o.logger.Info("turn completed",
		slog.String("session_id", sess.ID),
		slog.Int("snippets", len(snippets)),
		slog.Int("reply_len", utf8.RuneCountInString(reply)))

	return Result{SessionID: sess.ID, Reply: reply, Snippets: snippets}, nil
}

// sanitize strips control characters, trims whitespace and enforces the
// message length policy.
func (o *Orchestrator) sanitize(message string) (string, error) {
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	message = strings.TrimSpace(b.String())

	if message == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if n := utf8.RuneCountInString(message); n > o.maxLen {
		return "", fmt.Errorf("%w: message length %d exceeds limit %d", ErrValidation, n, o.maxLen)
	}
	return message, nil
}
