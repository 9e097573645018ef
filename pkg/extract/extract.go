package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// Format identifies the decoder used for a document.
type Format string

const (
	FormatUnknown Format = ""
	FormatText    Format = "text"
	FormatPDF     Format = "pdf"
	FormatDOCX    Format = "docx"
	FormatDOC     Format = "doc"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeDOC  = "application/msword"
	mimeOLE  = "application/x-ole-storage"
)

// Result is the extracted text and how it was obtained.
type Result struct {
	Text     string
	Format   Format
	MimeType string
	Pages    int
}

// Extractor converts documents to text.
type Extractor struct {
	logger  *slog.Logger
	tempDir string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithTempDir sets where PDF content streams are unpacked.
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractFile reads path and extracts its text. Read failures are transient.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Transient(core.StageExtract, fmt.Errorf("read %s: %w", filepath.Base(path), err))
	}
	return e.Extract(ctx, filepath.Base(path), data)
}

// Extract converts data into text. name is used for extension fallback when
// content sniffing is inconclusive.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (*Result, error) {
	format, mime := DetectFormat(name, data)
	if format == FormatUnknown {
		return nil, core.Format(core.StageExtract, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mime))
	}

	type outcome struct {
		text  string
		pages int
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var o outcome
		switch format {
		case FormatText:
			o.text, o.err = decodeText(data)
		case FormatPDF:
			o.text, o.pages, o.err = e.extractPDF(data)
		case FormatDOCX:
			o.text, o.err = extractDOCX(data)
		case FormatDOC:
			o.text, o.err = extractDOC(data)
		}
		done <- o
	}()

	var o outcome
	select {
	case <-ctx.Done():
		return nil, core.Transient(core.StageExtract, ctx.Err())
	case o = <-done:
	}

	if o.err != nil {
		if errors.Is(o.err, core.ErrCorruptDocument) || errors.Is(o.err, core.ErrUnsupportedFormat) {
			return nil, core.Format(core.StageExtract, o.err)
		}
		return nil, core.Transient(core.StageExtract, o.err)
	}

	text := NormalizeWhitespace(o.text)
	if text == "" {
		return nil, core.Format(core.StageExtract, core.ErrEmptyDocument)
	}

	e.logger.Debug("extracted document", "name", name, "format", format, "chars", len(text), "pages", o.pages)
	return &Result{Text: text, Format: format, MimeType: mime, Pages: o.pages}, nil
}

// DetectFormat sniffs the content first and falls back to the file extension.
func DetectFormat(name string, data []byte) (Format, string) {
	mt := mimetype.Detect(data)
	mime := mt.String()

	switch {
	case mt.Is("application/pdf"):
		return FormatPDF, mime
	case mt.Is(mimeDOCX):
		return FormatDOCX, mime
	case mt.Is(mimeDOC), mt.Is(mimeOLE):
		return FormatDOC, mime
	case mt.Is("text/plain"):
		return FormatText, mime
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".md":
		return FormatText, "text/plain"
	case ".pdf":
		return FormatPDF, "application/pdf"
	case ".docx":
		return FormatDOCX, mimeDOCX
	case ".doc":
		return FormatDOC, mimeDOC
	}
	return FormatUnknown, mime
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	innerSpace    = regexp.MustCompile(`[ \t]{2,}`)
)

// NormalizeWhitespace unifies line endings and collapses runs of blank space.
func NormalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = innerSpace.ReplaceAllString(s, " ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
