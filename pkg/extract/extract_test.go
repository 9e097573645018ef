package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

const carbonara = `Spaghetti Carbonara

Ingredients:
- 400g spaghetti
- 150g guanciale
- 4 egg yolks

Method:
1. Boil the pasta.
2. Crisp the guanciale.
3. Toss with yolks and pecorino.`

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := zw.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`))
	require.NoError(t, err)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="` + wordNS + `"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>C</w:t></w:r></w:p>`)
	body.WriteString(`</w:body></w:document>`)
	_, err = w.Write(body.Bytes())
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// ──────────────────────────────────────────────────────────────────────────────
// Plain text
// ──────────────────────────────────────────────────────────────────────────────

func TestExtract_PlainTextUTF8(t *testing.T) {
	res, err := New().Extract(context.Background(), "carbonara.txt", []byte(carbonara))
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Contains(t, res.Text, "Spaghetti Carbonara")
	assert.Contains(t, res.Text, "400g spaghetti")
}

func TestExtract_PlainTextStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Soup\nwater")...)
	res, err := New().Extract(context.Background(), "soup.txt", data)
	require.NoError(t, err)
	assert.Equal(t, "Soup\nwater", res.Text)
}

func TestExtract_PlainTextUTF16(t *testing.T) {
	data := []byte{0xFF, 0xFE}
	for _, r := range "Soup\nwater" {
		data = append(data, byte(r), 0x00)
	}
	res, err := New().Extract(context.Background(), "soup.txt", data)
	require.NoError(t, err)
	assert.Equal(t, "Soup\nwater", res.Text)
}

func TestExtract_PlainTextWindows1252Fallback(t *testing.T) {
	// "Crème brûlée" in Windows-1252
	data := []byte("Cr\xe8me br\xfbl\xe9e\n4 egg yolks")
	res, err := New().Extract(context.Background(), "dessert.txt", data)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Crème brûlée")
}

func TestExtract_EmptyDocument(t *testing.T) {
	_, err := New().Extract(context.Background(), "blank.txt", []byte("   \n\n\t "))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmptyDocument)
	assert.Equal(t, core.FailureFormat, core.KindOf(err))
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	_, err := New().Extract(context.Background(), "photo.png", png)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Equal(t, core.FailureFormat, core.KindOf(err))
}

// ──────────────────────────────────────────────────────────────────────────────
// Containers
// ──────────────────────────────────────────────────────────────────────────────

func TestExtract_DOCX(t *testing.T) {
	data := buildDOCX(t, "Pancakes", "200g flour", "2 eggs")
	res, err := New().Extract(context.Background(), "pancakes.docx", data)
	require.NoError(t, err)
	assert.Equal(t, FormatDOCX, res.Format)
	assert.Equal(t, "Pancakes\n200g flour\n2 eggs\nA\tB\nC", res.Text)
}

func TestExtract_DOCXMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New().Extract(context.Background(), "broken.docx", buf.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCorruptDocument)
	assert.Equal(t, core.FailureFormat, core.KindOf(err))
}

func TestExtract_CorruptPDF(t *testing.T) {
	_, err := New(WithTempDir(t.TempDir())).Extract(context.Background(), "broken.pdf", []byte("%PDF-1.4\nthis is not a pdf body"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCorruptDocument)
	assert.Equal(t, core.FailureFormat, core.KindOf(err))
}

func TestExtract_CorruptDOC(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0}, 64)...)
	_, err := New().Extract(context.Background(), "old.doc", data)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrCorruptDocument)
}

// ──────────────────────────────────────────────────────────────────────────────
// Files / context
// ──────────────────────────────────────────────────────────────────────────────

func TestExtractFile_MissingFileIsTransient(t *testing.T) {
	_, err := New().ExtractFile(context.Background(), filepath.Join(t.TempDir(), "gone.txt"))
	require.Error(t, err)
	assert.Equal(t, core.FailureTransient, core.KindOf(err))
}

func TestExtractFile_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carbonara.txt")
	require.NoError(t, os.WriteFile(path, []byte(carbonara), 0o600))

	res, err := New().ExtractFile(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "guanciale")
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := New().Extract(ctx, "x.txt", []byte("hello"))
	if err != nil {
		assert.Equal(t, core.FailureTransient, core.KindOf(err))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func TestDetectFormat_ExtensionFallback(t *testing.T) {
	f, _ := DetectFormat("notes.md", []byte("# Soup"))
	assert.Equal(t, FormatText, f)

	f, _ = DetectFormat("mystery.bin", []byte{0x00, 0x01, 0x02, 0x03})
	assert.Equal(t, FormatUnknown, f)
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "Title  \r\n\r\n\r\n\r\nline   one\t\t\nline two end  "
	assert.Equal(t, "Title\n\nline one\nline two end", NormalizeWhitespace(in))
}

func TestContentStreamText(t *testing.T) {
	stream := []byte(`BT
/F1 12 Tf
72 720 Td
(Tomato Soup) Tj
0 -14 Td
[(2 cups ) -50 (tomatoes)] TJ
T*
(Simmer \(gently\) for 20 min) Tj
[(Serve) -300 (hot)] TJ
ET
BT (Page\0402) ' ET`)

	got := ContentStreamText(stream)
	assert.Equal(t, "Tomato Soup\n2 cups tomatoes\nSimmer (gently) for 20 minServe hot\nPage 2\n", got)
}

func TestContentStreamText_HexAndUTF16(t *testing.T) {
	stream := []byte(`BT <48656C6C6F> Tj T* <FEFF00C900740065> Tj <0102> Tj ET`)
	assert.Equal(t, "Hello\nÉte\n", ContentStreamText(stream))
}

func TestCleanWordText(t *testing.T) {
	assert.Equal(t, "a\nb\tc", cleanWordText("a\rb\x07c\x01"))
}

func TestScanRuns(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x01, 0x00)
	for _, r := range "Risotto\r" {
		stream = append(stream, byte(r), 0x00)
	}
	stream = append(stream, 0x01, 0x00)
	assert.Equal(t, "Risotto\n\n", scanRuns(stream))
}
