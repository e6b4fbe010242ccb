package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxDocxXMLSize bounds the decompressed document.xml read, guarding
// against zip bombs in uploads.
const maxDocxXMLSize = 50 * 1024 * 1024

// extractDOCX extracts paragraph text from a DOCX archive.
// A DOCX file is a zip containing word/document.xml; paragraph and line
// break tags become newlines, every other tag is stripped.
func extractDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening document.xml: %w", err)
		}
		docXML, err = io.ReadAll(io.LimitReader(rc, maxDocxXMLSize))
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading document.xml: %w", err)
		}
		break
	}
	if docXML == nil {
		return "", errors.New("no word/document.xml in archive")
	}

	return stripTags(string(docXML)), nil
}

// stripTags removes XML tags, converting paragraph ends and explicit breaks
// to newlines so sentence boundaries survive chunking.
func stripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s) / 2)

	inTag := false
	var tag strings.Builder
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			switch name := tag.String(); {
			case name == "/w:p" || name == "w:br" || name == "w:br/":
				b.WriteByte('\n')
			case name == "w:tab" || name == "w:tab/":
				b.WriteByte('\t')
			}
		case inTag:
			tag.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
