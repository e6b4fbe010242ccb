package knowledge

import (
	"fmt"
	"unicode"
)

// sentence terminators considered hard boundaries when adjusting a chunk end.
const sentenceTerminators = ".!?\n"

// Chunker splits extracted text into overlapping, boundary-aware chunks.
// Size and overlap are fixed at construction so every split over the same
// text produces the same chunks.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// NewChunker creates a Chunker. size is the window length in runes, overlap
// the number of runes shared between consecutive windows. overlap must be
// smaller than size or the walk would never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, size), got %d", overlap)
	}
	return &Chunker{
		size:     size,
		overlap:  overlap,
		lookback: size / 2,
	}, nil
}

// Split cuts text into chunks. Start offsets advance by size-overlap runes
// per window, so they are strictly increasing and the first chunk always
// starts at 0. When a window end would land mid-word the end retracts to
// the nearest preceding sentence terminator, then to the nearest preceding
// whitespace, then stays at the raw rune boundary. Empty text yields nil.
func (c *Chunker) Split(fileID, text string) []Chunk {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var chunks []Chunk
	for start := 0; start < n; start += stride {
		end := start + c.size
		if end >= n {
			end = n
		} else {
			end = c.adjustEnd(runes, start, end)
		}
		chunks = append(chunks, Chunk{
			FileID: fileID,
			Start:  start,
			End:    end,
			Text:   string(runes[start:end]),
		})
		if end == n {
			break
		}
	}
	return chunks
}

// adjustEnd moves a raw window end backwards to a natural boundary.
// The search never retracts past lookback runes or before start+1.
func (c *Chunker) adjustEnd(runes []rune, start, end int) int {
	// Boundary already falls between words, keep it.
	if unicode.IsSpace(runes[end]) || unicode.IsSpace(runes[end-1]) {
		return end
	}

	limit := end - c.lookback
	if limit < start+1 {
		limit = start + 1
	}
	for i := end - 1; i >= limit; i-- {
		if isTerminator(runes[i]) {
			return i + 1
		}
	}
	for i := end - 1; i >= limit; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isTerminator(r rune) bool {
	for _, t := range sentenceTerminators {
		if r == t {
			return true
		}
	}
	return false
}
