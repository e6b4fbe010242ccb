package knowledge

import "time"

// File describes an uploaded knowledge document.
type File struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk is a contiguous span of a document's extracted text.
// Start and End are rune offsets into the extracted text, so a chunk can be
// located again regardless of multi-byte characters.
type Chunk struct {
	FileID string
	Start  int
	End    int
	Text   string
}

// Snippet is a scored chunk selected for prompt assembly.
type Snippet struct {
	FileID   string  `json:"file_id"`
	Filename string  `json:"filename"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}
