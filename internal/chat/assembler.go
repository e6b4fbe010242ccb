package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/Alroma79/data-flywheel-chatbot/internal/knowledge"
	"github.com/Alroma79/data-flywheel-chatbot/internal/llm"
	"github.com/Alroma79/data-flywheel-chatbot/internal/session"
)

// snippetPreamble introduces the retrieved excerpts to the model.
const snippetPreamble = "Use the following excerpts from the knowledge base to answer. " +
	"Cite the source filename when you rely on an excerpt."

// Assembler builds the bounded message sequence handed to generation:
// system prompt, the most recent history turns in their original order, a
// block listing retrieved snippets when there are any, and the new user
// message last.
type Assembler struct {
	sessions        *session.Store
	systemPrompt    string
	maxHistoryTurns int
}

// NewAssembler creates an Assembler. maxHistoryTurns caps how many prior
// turns are replayed per request.
func NewAssembler(sessions *session.Store, systemPrompt string, maxHistoryTurns int) *Assembler {
	return &Assembler{
		sessions:        sessions,
		systemPrompt:    systemPrompt,
		maxHistoryTurns: maxHistoryTurns,
	}
}

// Assemble builds the context window for one turn. When snippets is empty
// the snippet block is omitted entirely so the model cannot fabricate
// attribution.
func (a *Assembler) Assemble(ctx context.Context, sessionID, message string, snippets []knowledge.Snippet) ([]llm.Message, error) {
	history, err := a.sessions.Recent(ctx, sessionID, a.maxHistoryTurns)
	if err != nil {
		return nil, &StoreError{Op: "reading history", Err: err}
	}

	window := make([]llm.Message, 0, len(history)+3)
	window = append(window, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	for _, t := range history {
		window = append(window, llm.Message{Role: t.Role, Content: t.Content})
	}
	if len(snippets) > 0 {
		window = append(window, llm.Message{Role: llm.RoleSystem, Content: snippetBlock(snippets)})
	}
	window = append(window, llm.Message{Role: llm.RoleUser, Content: message})
	return window, nil
}

// snippetBlock renders retrieved snippets with their source filenames.
func snippetBlock(snippets []knowledge.Snippet) string {
	var b strings.Builder
	b.WriteString(snippetPreamble)
	for _, s := range snippets {
		fmt.Fprintf(&b, "\n\n[source: %s]\n%s", s.Filename, s.Text)
	}
	return b.String()
}
