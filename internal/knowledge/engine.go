package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Alroma79/data-flywheel-chatbot/internal/extract"
)

// maxCachedTexts bounds the extracted-text cache. The cache is best-effort;
// when full it is simply discarded and rebuilt.
const maxCachedTexts = 128

// Engine retrieves ranked snippets for a query by extracting, chunking and
// scoring every active knowledge file. Retrieval is recompute-per-call over
// the whole corpus, apart from an extracted-text cache keyed by content
// fingerprint, which keeps it deterministic and free of index state.
//
// Engine is safe for concurrent use.
type Engine struct {
	store         *Store
	chunker       *Chunker
	maxResults    int
	maxTotalChars int
	logger        *slog.Logger

	mu    sync.Mutex
	cache map[string]string // fingerprint -> extracted text
}

// NewEngine creates an Engine. maxResults caps the number of snippets per
// query; maxTotalChars caps their cumulative text length in runes.
func NewEngine(store *Store, chunker *Chunker, maxResults, maxTotalChars int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:         store,
		chunker:       chunker,
		maxResults:    maxResults,
		maxTotalChars: maxTotalChars,
		logger:        logger,
		cache:         make(map[string]string),
	}
}

// Retrieve returns the top snippets for a query, ranked descending by score.
//
// Each active file contributes at most one snippet: its single best-scoring
// chunk. Zero-score matches are dropped, ties are broken by file ID so
// ranking is deterministic, and the cumulative character budget truncates
// the snippet that crosses it while dropping everything after. An empty
// result is a normal outcome, not an error. Files that fail extraction are
// skipped, never fatal to the pass.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]Snippet, error) {
	if len(queryTokens(query)) == 0 {
		return nil, nil
	}

	files, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge files: %w", err)
	}

	var candidates []Snippet
	for _, f := range files {
		text, err := e.text(ctx, f)
		if err != nil {
			e.logger.Warn("skipping knowledge file",
				slog.String("file_id", f.ID),
				slog.String("filename", f.Filename),
				slog.Any("error", err))
			continue
		}

		best, ok := e.bestChunk(f.ID, text, query)
		if !ok {
			continue
		}
		candidates = append(candidates, Snippet{
			FileID:   f.ID,
			Filename: f.Filename,
			Text:     best.Text,
			Score:    best.Score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].FileID < candidates[j].FileID
	})
	if len(candidates) > e.maxResults {
		candidates = candidates[:e.maxResults]
	}

	return e.applyCharBudget(candidates), nil
}

// scoredChunk pairs a chunk with its relevance score.
type scoredChunk struct {
	Text  string
	Score float64
}

// bestChunk returns the highest-scoring chunk of a file's text, keeping the
// earliest chunk on score ties. ok is false when no chunk scores above zero.
func (e *Engine) bestChunk(fileID, text, query string) (scoredChunk, bool) {
	var best scoredChunk
	for _, c := range e.chunker.Split(fileID, text) {
		if s := Score(c.Text, query); s > best.Score {
			best = scoredChunk{Text: c.Text, Score: s}
		}
	}
	return best, best.Score > 0
}

// applyCharBudget enforces the cumulative character cap in score order: the
// snippet that would cross the budget is truncated to the remainder and all
// later snippets are dropped.
func (e *Engine) applyCharBudget(snippets []Snippet) []Snippet {
	remaining := e.maxTotalChars
	var out []Snippet
	for _, s := range snippets {
		if remaining <= 0 {
			break
		}
		runes := []rune(s.Text)
		if len(runes) > remaining {
			s.Text = string(runes[:remaining])
			out = append(out, s)
			break
		}
		remaining -= len(runes)
		out = append(out, s)
	}
	return out
}

// text returns a file's extracted text, consulting the fingerprint-keyed
// cache first. The format is taken from the filename extension.
func (e *Engine) text(ctx context.Context, f File) (string, error) {
	e.mu.Lock()
	cached, ok := e.cache[f.Fingerprint]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	raw, err := e.store.Bytes(ctx, f.ID)
	if err != nil {
		return "", err
	}
	text, err := extract.Text(raw, filepath.Ext(f.Filename))
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if len(e.cache) >= maxCachedTexts {
		e.cache = make(map[string]string)
	}
	e.cache[f.Fingerprint] = text
	e.mu.Unlock()
	return text, nil
}
