package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	out   []byte
	err   error
	calls int
}

func (f *fakeEngine) ToPDF(ctx context.Context, data []byte, filename string) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

func TestConvertCanonicalIsIdentity(t *testing.T) {
	engine := &fakeEngine{}
	c := New(engine)

	for _, name := range []string{"nda.pdf", "NDA.PDF", "contract.docx"} {
		in := []byte("original bytes of " + name)
		out, err := c.Convert(context.Background(), in, name)
		require.NoError(t, err)
		assert.Equal(t, in, out, name)
	}
	assert.Zero(t, engine.calls)
}

func TestConvertLegacyUsesEngine(t *testing.T) {
	engine := &fakeEngine{out: []byte("%PDF-1.7 converted")}
	c := New(engine)

	for _, name := range []string{"old.doc", "letter.rtf", "draft.odt"} {
		out, err := c.Convert(context.Background(), []byte("legacy"), name)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.7 converted"), out)
	}
	assert.Equal(t, 3, engine.calls)
}

func TestConvertUnknownExtension(t *testing.T) {
	engine := &fakeEngine{}
	out, err := New(engine).Convert(context.Background(), []byte("x"), "notes.txt")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Zero(t, engine.calls)
}

func TestConvertEngineFailure(t *testing.T) {
	c := New(&fakeEngine{err: errors.New("soffice crashed")})
	_, err := c.Convert(context.Background(), []byte("legacy"), "old.doc")
	assert.ErrorIs(t, err, ErrConversionFailed)
	assert.ErrorContains(t, err, "soffice crashed")

	c = New(&fakeEngine{out: []byte("<html>")})
	_, err = c.Convert(context.Background(), []byte("legacy"), "old.doc")
	assert.ErrorIs(t, err, ErrConversionFailed)

	_, err = New(nil).Convert(context.Background(), []byte("legacy"), "old.doc")
	assert.ErrorIs(t, err, ErrConversionFailed)
}

func TestSupportedAndPDFName(t *testing.T) {
	assert.True(t, Supported("a.DOC"))
	assert.True(t, Supported("a.pdf"))
	assert.False(t, Supported("a.txt"))
	assert.Equal(t, "old.pdf", PDFName("old.doc"))
	assert.True(t, Canonical("nda.DOCX"))
	assert.False(t, Canonical("nda.rtf"))
}

func TestDocxToHTML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, _ = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Term</w:t></w:r></w:p>
<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>Two</w:t></w:r><w:r><w:rPr><w:i/></w:rPr><w:t xml:space="preserve"> years &amp; more</w:t></w:r></w:p>
<w:p/>
</w:body></w:document>`))
	require.NoError(t, zw.Close())

	out, err := DocxToHTML(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "<h2>Term</h2><p><strong>Two</strong><em> years &amp; more</em></p>", out)
}
