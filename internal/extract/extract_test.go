package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_Plain(t *testing.T) {
	text, err := Text([]byte("hello world\nsecond line"), "txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world\nsecond line", text)
}

func TestText_Markdown(t *testing.T) {
	text, err := Text([]byte("# Title\n\nbody"), ".md")
	require.NoError(t, err)
	assert.Contains(t, text, "Title")
}

func TestText_UnsupportedFormat(t *testing.T) {
	_, err := Text([]byte("data"), "xlsx")
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonUnsupported, ee.Reason)
}

func TestText_EmptyResult(t *testing.T) {
	_, err := Text([]byte("   \n\t  "), "txt")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonEmpty, ee.Reason)
	assert.False(t, IsUnsupported(err))
}

func TestText_CorruptPDF(t *testing.T) {
	_, err := Text([]byte("definitely not a pdf"), "pdf")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonCorrupt, ee.Reason)
}

func TestText_ScrubsControlCharacters(t *testing.T) {
	text, err := Text([]byte("keep\tthis\nline\x00\x01 clean"), "txt")
	require.NoError(t, err)
	assert.Equal(t, "keep\tthis\nline clean", text)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("txt"))
	assert.True(t, Supported(".PDF"))
	assert.True(t, Supported("docx"))
	assert.False(t, Supported("exe"))
	assert.True(t, SupportedFilename("notes.md"))
	assert.False(t, SupportedFilename("archive.tar.gz"))
}

// buildDocx assembles a minimal DOCX archive around the given document.xml body.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestText_DOCX(t *testing.T) {
	raw := buildDocx(t, `<w:document><w:body><w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p><w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p></w:body></w:document>`)

	text, err := Text(raw, "docx")
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	// Paragraph tags become newlines.
	assert.Contains(t, text, "First paragraph.\n")
}

func TestText_DOCXWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Text(buf.Bytes(), "docx")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonCorrupt, ee.Reason)
}

func TestText_CorruptDOCX(t *testing.T) {
	_, err := Text([]byte("not a zip"), "docx")
	require.Error(t, err)

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ReasonCorrupt, ee.Reason)
}
