package docextract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDispatch(t *testing.T) {
	_, err := Extract(strings.NewReader("hello"), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Extract(strings.NewReader("hello"), "noextension")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractDOCX(t *testing.T) {
	docXML := `<?xml version="1.0"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	extracted, err := Extract(bytes.NewReader(buildDOCX(t, docXML)), "Report.DOCX")
	require.NoError(t, err)

	assert.Equal(t, TypeDOCX, extracted.DocumentType)
	assert.Equal(t, "Report.DOCX", extracted.Filename)
	require.Len(t, extracted.Pages, 1)
	assert.Equal(t, 1, extracted.Pages[0].PageNumber)
	assert.Contains(t, extracted.Pages[0].Content, "First paragraph.\n")
	assert.Contains(t, extracted.Pages[0].Content, "Second paragraph.")
}

func TestExtractDOCXErrors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		_, err := ExtractDOCX(bytes.NewReader(nil), "empty.docx")
		assert.Error(t, err)
	})

	t.Run("not a zip archive", func(t *testing.T) {
		_, err := ExtractDOCX(strings.NewReader("just text"), "fake.docx")
		assert.Error(t, err)
	})

	t.Run("missing document part", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, err := zw.Create("word/styles.xml")
		require.NoError(t, err)
		_, err = f.Write([]byte("<styles/>"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = ExtractDOCX(bytes.NewReader(buf.Bytes()), "odd.docx")
		assert.Error(t, err)
	})

	t.Run("no extractable text", func(t *testing.T) {
		docXML := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body></w:body></w:document>`
		_, err := ExtractDOCX(bytes.NewReader(buildDOCX(t, docXML)), "blank.docx")
		assert.Error(t, err)
	})
}

func TestExtractedText(t *testing.T) {
	e := &Extracted{Pages: []Page{
		{PageNumber: 1, Content: "one"},
		{PageNumber: 2, Content: "two"},
	}}
	assert.Equal(t, "one\ntwo", e.Text())
}
