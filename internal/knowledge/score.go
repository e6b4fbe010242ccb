package knowledge

import "strings"

// Score rates how well a chunk answers a query, in [0.0, 1.0].
//
// The score is the proportion of distinct query tokens found in the chunk:
// both sides are lowercased, the query is split on whitespace, and a token
// counts as found when it appears anywhere in the chunk text. Term frequency
// and chunk length are deliberately ignored. This is naive lexical overlap,
// not semantic similarity; it works well enough for small document sets and
// keeps ranking fully deterministic.
//
// A query with no tokens scores 0.0 against every chunk.
func Score(chunkText, query string) float64 {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return 0
	}

	chunkLower := strings.ToLower(chunkText)
	matched := 0
	for _, tok := range tokens {
		if strings.Contains(chunkLower, tok) {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// queryTokens lowercases and splits a query on whitespace, deduplicating
// tokens while preserving first-seen order.
func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
