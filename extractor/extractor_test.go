package extractor

import (
	"archive/zip"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Mutual NDA</w:t></w:r></w:p>
    <w:p>
      <w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Confidential Information </w:t></w:r>
      <w:r><w:rPr><w:i/><w:b w:val="0"/></w:rPr><w:t>means</w:t></w:r>
      <w:r><w:t xml:space="preserve"> any data.</w:t></w:r>
    </w:p>
    <w:p></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, body string) []byte {
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

func TestReadDOCX(t *testing.T) {
	doc, err := ReadDOCX(buildDOCX(t, docxBody))
	require.NoError(t, err)
	require.Len(t, doc.Paragraphs, 3)

	assert.Equal(t, 1, doc.Paragraphs[0].Heading())
	assert.Equal(t, "Mutual NDA", doc.Paragraphs[0].Text())

	runs := doc.Paragraphs[1].Runs
	require.Len(t, runs, 3)
	assert.True(t, runs[0].Bold)
	assert.False(t, runs[1].Bold)
	assert.True(t, runs[1].Italic)
	assert.Equal(t, "Confidential Information means any data.", doc.Paragraphs[1].Text())
}

func TestExtractDOCXText(t *testing.T) {
	text, err := ExtractDOCXText(buildDOCX(t, docxBody))
	require.NoError(t, err)
	assert.Equal(t, "Mutual NDA\nConfidential Information means any data.", text)
}

func TestExtractDOCXTextErrors(t *testing.T) {
	_, err := ExtractDOCXText([]byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = ExtractDOCXText(buf.Bytes())
	assert.ErrorContains(t, err, "document.xml not found")
}

func TestExtractPDFText(t *testing.T) {
	data, err := os.ReadFile("testdata/sample.pdf")
	require.NoError(t, err)

	text, err := ExtractPDFText(data)
	require.NoError(t, err)
	assert.Contains(t, text, "MUTUAL NON-DISCLOSURE AGREEMENT")
	assert.Contains(t, text, "Governing Law")
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, err := ExtractPDFText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestExtractPlainText(t *testing.T) {
	text, err := ExtractPlainText([]byte("\xEF\xBB\xBFLine one  \r\n\r\n\r\nLine two\x00"))
	require.NoError(t, err)
	assert.Equal(t, "Line one\n\nLine two", text)

	// Windows-1252 curly quotes
	text, err = ExtractPlainText([]byte{0x93, 'h', 'i', 0x94})
	require.NoError(t, err)
	assert.Equal(t, "“hi”", text)

	// UTF-16 LE with BOM
	text, err = ExtractPlainText([]byte{0xFF, 0xFE, 'o', 0, 'k', 0})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	_, err = ExtractPlainText(nil)
	assert.Error(t, err)
}

func TestSplitShortText(t *testing.T) {
	chunks := Split("  short text  ", 600, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, Chunk{Index: 0, Text: "short text"}, chunks[0])

	assert.Nil(t, Split("   ", 600, 100))
}

func TestSplitOverlapAndBounds(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := Split(text, 600, 100)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, len([]rune(c.Text)), 600)
	}

	// consecutive chunks share text
	tail := chunks[0].Text[len(chunks[0].Text)-40:]
	assert.Contains(t, chunks[1].Text, strings.TrimSpace(tail))
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	first := strings.Repeat("a", 400)
	second := strings.Repeat("b", 400)
	chunks := Split(first+"\n\n"+second, 600, 0)

	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0].Text)
	assert.Equal(t, second, chunks[1].Text)
}

func TestSplitNormalisesBadArguments(t *testing.T) {
	chunks := Split(strings.Repeat("x", 1300), 0, 5000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Text, 600)
}
