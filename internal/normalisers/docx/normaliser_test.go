package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragmem/internal/core/domain"
	"github.com/custodia-labs/ragmem/internal/core/ports/driven"
)

const docxMIME = MIMEType

// createTestDOCX creates a minimal valid DOCX file in memory.
func createTestDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	write := func(name, body string) {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}

	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="xml" ContentType="application/xml"/>
</Types>`)
	if documentXML != "" {
		write("word/document.xml", documentXML)
	}
	if coreXML != "" {
		write("docProps/core.xml", coreXML)
	}

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.Normaliser = New()
}

func TestSupportedMIMETypes(t *testing.T) {
	assert.Equal(t, []string{docxMIME}, New().SupportedMIMETypes())
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	core := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Travel Checklist</dc:title>
</cp:coreProperties>`
	raw := &domain.RawDocument{
		Path:     "/docs/checklist.docx",
		MIMEType: docxMIME,
		Content:  createTestDOCX(t, wordDocument(`<w:p><w:r><w:t>Bring a passport.</w:t></w:r></w:p>`), core),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Travel Checklist", doc.Title)
	assert.Equal(t, "Bring a passport.", doc.Content)
	assert.Equal(t, raw.Path, doc.Path)
	assert.Equal(t, docxMIME, doc.MIMEType)
	assert.Equal(t, "docx", doc.Metadata["format"])
}

func TestNormalise_NilDocument(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Nil(t, result)
}

func TestNormalise_InvalidZip(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:     "/docs/broken.docx",
		MIMEType: docxMIME,
		Content:  []byte("not a zip"),
	})

	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "broken.docx")
	assert.Nil(t, result)
}

func TestNormalise_TitleFallbackToFilename(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:     "/docs/my_document.docx",
		MIMEType: docxMIME,
		Content:  createTestDOCX(t, wordDocument(`<w:p><w:r><w:t>x</w:t></w:r></w:p>`), ""),
	})

	require.NoError(t, err)
	assert.Equal(t, "my document", result.Document.Title)
}

func TestNormalise_Paragraphs(t *testing.T) {
	body := `<w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
<w:p></w:p>
<w:p><w:r><w:t>Second paragraph</w:t></w:r></w:p>
<w:p><w:r><w:t>Third paragraph</w:t></w:r></w:p>`

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:    "/doc.docx",
		Content: createTestDOCX(t, wordDocument(body), ""),
	})

	require.NoError(t, err)
	assert.Equal(t, "First paragraph\n\nSecond paragraph\n\nThird paragraph", result.Document.Content)
}

func TestNormalise_MultipleRuns(t *testing.T) {
	body := `<w:p>
<w:r><w:t xml:space="preserve">Hello </w:t></w:r>
<w:r><w:t>World</w:t></w:r>
</w:p>`

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:    "/doc.docx",
		Content: createTestDOCX(t, wordDocument(body), ""),
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello World", result.Document.Content)
}

func TestNormalise_MissingDocumentXML(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:    "/empty.docx",
		Content: createTestDOCX(t, "", ""),
	})

	require.NoError(t, err)
	assert.Empty(t, result.Document.Content)
}

func TestNormalise_MetadataPreserved(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:     "/doc.docx",
		Content:  createTestDOCX(t, wordDocument(""), ""),
		Metadata: map[string]any{"origin": "cli"},
	})

	require.NoError(t, err)
	assert.Equal(t, "cli", result.Document.Metadata["origin"])
}

func TestNormalise_TabsAndBreaks(t *testing.T) {
	body := `<w:p><w:r><w:t>Name</w:t><w:tab/><w:t>Value</w:t></w:r></w:p>
<w:p><w:r><w:t>line one</w:t><w:br/><w:t>line two</w:t></w:r></w:p>`

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:    "/doc.docx",
		Content: createTestDOCX(t, wordDocument(body), ""),
	})

	require.NoError(t, err)
	assert.Equal(t, "Name\tValue\n\nline one\nline two", result.Document.Content)
}

func TestNormalise_BlankCoreTitleFallsBack(t *testing.T) {
	core := `<cp:coreProperties xmlns:cp="x" xmlns:dc="y"><dc:title>  </dc:title></cp:coreProperties>`

	result, err := New().Normalise(context.Background(), &domain.RawDocument{
		Path:    "/docs/visa-rules.docx",
		Content: createTestDOCX(t, wordDocument(""), core),
	})

	require.NoError(t, err)
	assert.Equal(t, "visa rules", result.Document.Title)
}
