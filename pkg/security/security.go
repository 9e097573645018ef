// Package security provides validation, sanitization, and limits for the ingestion pipeline.
package security

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Security limits and configuration
const (
	// MaxUploadSize is the largest document accepted for ingestion (10MB)
	MaxUploadSize = 10 << 20

	// MaxRetries is the hard limit for retry attempts
	MaxRetries = 100

	// MaxWorkers is the hard limit for worker pool size
	MaxWorkers = 256

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxFilenameLength is the maximum length for stored filenames
	MaxFilenameLength = 255

	// DefaultPageSize and MaxPageSize bound job listings
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var (
	ErrInvalidFilename   = errors.New("ingest: invalid filename")
	ErrUnsupportedUpload = errors.New("ingest: unsupported file extension")
	ErrUploadTooLarge    = errors.New("ingest: upload exceeds size limit")
)

// AllowedExtensions are the document types intake accepts.
var AllowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\- ]+`)

// SanitizeFilename reduces an uploaded name to a safe base name.
func SanitizeFilename(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.TrimSpace(strings.TrimLeft(base, "."))
	if base == "" || base == "_" {
		return "", ErrInvalidFilename
	}
	return TruncateFilename(base, MaxFilenameLength), nil
}

// maxExtensionLength bounds what TruncateFilename treats as an extension.
// Longer suffixes are cut like the rest of the name.
const maxExtensionLength = 16

// TruncateFilename shortens name to at most max bytes. A short extension is
// kept and a multi-byte rune is never split.
func TruncateFilename(name string, max int) string {
	if len(name) <= max {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > maxExtensionLength || len(ext) >= max {
		ext = ""
	}
	return truncateBytes(strings.TrimSuffix(name, ext), max-len(ext)) + ext
}

// truncateBytes cuts s to at most n bytes on a rune boundary.
func truncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ValidateUpload checks the extension and size of an incoming document.
func ValidateUpload(name string, size int64) error {
	if !AllowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return ErrUnsupportedUpload
	}
	if size > MaxUploadSize {
		return ErrUploadTooLarge
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampWorkers ensures the worker pool size is within limits
func ClampWorkers(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

// ClampPageSize applies the default and maximum listing size.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// ClampConfidence forces a score into [0, 1].
func ClampConfidence(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
