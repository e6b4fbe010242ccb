// Package extract converts raw uploaded bytes into plain text.
//
// Extraction is a pure transform: it never touches the filesystem and never
// panics on malformed input. Failures are typed so the retrieval engine can
// distinguish an unsupported format from corrupt content and skip the
// document instead of aborting the whole pass.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Reason classifies an extraction failure.
type Reason int

const (
	// ReasonUnsupported means the declared format has no extractor.
	ReasonUnsupported Reason = iota

	// ReasonCorrupt means the bytes could not be decoded as the declared format.
	ReasonCorrupt

	// ReasonEmpty means extraction succeeded but produced no text.
	ReasonEmpty
)

func (r Reason) String() string {
	switch r {
	case ReasonUnsupported:
		return "unsupported format"
	case ReasonCorrupt:
		return "corrupt content"
	case ReasonEmpty:
		return "empty result"
	default:
		return "unknown"
	}
}

// Error is a typed extraction failure.
type Error struct {
	Reason Reason
	Format string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extracting %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("extracting %s: %s", e.Format, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnsupported reports whether err is an extraction failure caused by an
// unsupported declared format.
func IsUnsupported(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Reason == ReasonUnsupported
}

// supportedFormats maps normalized format names to their extractors.
// Formats are checked by declared extension, not by content sniffing, so
// behavior stays predictable.
var supportedFormats = map[string]func([]byte) (string, error){
	"txt":  extractPlain,
	"md":   extractPlain,
	"pdf":  extractPDF,
	"docx": extractDOCX,
}

// Supported reports whether the declared format (extension or bare name,
// case-insensitive) has an extractor.
func Supported(format string) bool {
	_, ok := supportedFormats[normalizeFormat(format)]
	return ok
}

// SupportedFilename reports whether a filename's extension has an extractor.
func SupportedFilename(name string) bool {
	return Supported(filepath.Ext(name))
}

// SupportedList returns the supported formats as a sorted comma-separated
// string, for help text and error messages.
func SupportedList() string {
	formats := make([]string, 0, len(supportedFormats))
	for f := range supportedFormats {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return strings.Join(formats, ", ")
}

// Text extracts plain text from raw bytes of the declared format.
// It returns a *Error on failure; an empty extraction result is a failure
// with ReasonEmpty, never an empty success.
func Text(raw []byte, format string) (string, error) {
	f := normalizeFormat(format)
	fn, ok := supportedFormats[f]
	if !ok {
		return "", &Error{Reason: ReasonUnsupported, Format: format}
	}

	text, err := fn(raw)
	if err != nil {
		return "", &Error{Reason: ReasonCorrupt, Format: f, Err: err}
	}

	text = scrub(text)
	if strings.TrimSpace(text) == "" {
		return "", &Error{Reason: ReasonEmpty, Format: f}
	}
	return text, nil
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

// extractPlain treats the bytes as UTF-8 text.
func extractPlain(raw []byte) (string, error) {
	return string(raw), nil
}

// scrub removes control characters that break prompt assembly, keeping
// newlines and tabs. Invalid UTF-8 bytes are dropped.
func scrub(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(r)
		case r < 32 || r == 0xFFFD:
			// skip
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
