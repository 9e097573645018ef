package security

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"carbonara.txt", "carbonara.txt"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\soup.docx`, "soup.docx"},
		{"nonna's tiramisù.pdf", "nonna_s tiramis_.pdf"},
		{".hidden.txt", "hidden.txt"},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSanitizeFilename_Invalid(t *testing.T) {
	for _, in := range []string{"", "/", "..", "???"} {
		_, err := SanitizeFilename(in)
		assert.ErrorIs(t, err, ErrInvalidFilename, "input %q", in)
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	got, err := SanitizeFilename(strings.Repeat("a", 400) + ".pdf")
	require.NoError(t, err)
	assert.Len(t, got, MaxFilenameLength)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestSanitizeFilename_OversizedExtension(t *testing.T) {
	got, err := SanitizeFilename("recipe." + strings.Repeat("x", 300))
	require.NoError(t, err)
	assert.Len(t, got, MaxFilenameLength)
	assert.True(t, strings.HasPrefix(got, "recipe."))
	assert.ErrorIs(t, ValidateUpload(got, 1), ErrUnsupportedUpload)
}

func TestTruncateFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits", "soup.txt", 20, "soup.txt"},
		{"keeps extension", "carbonara.docx", 10, "carbo.docx"},
		{"long extension is not kept", "a." + strings.Repeat("b", 20), 6, "a.bbbb"},
		{"extension as long as max", "abc.pdf", 4, "abc."},
		{"no room", "soup.txt", 0, ""},
		{"rune boundary", "tiramisù.md", 11, "tiramis.md"},
		{"multibyte only", "ñññ", 5, "ññ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateFilename(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), max(tt.max, 0))
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestValidateUpload(t *testing.T) {
	assert.NoError(t, ValidateUpload("x.PDF", 100))
	assert.NoError(t, ValidateUpload("x.docx", MaxUploadSize))
	assert.ErrorIs(t, ValidateUpload("x.exe", 100), ErrUnsupportedUpload)
	assert.ErrorIs(t, ValidateUpload("x.txt", MaxUploadSize+1), ErrUploadTooLarge)
}

func TestSanitizeErrorMessage_Empty(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
}

func TestSanitizeErrorMessage_RemovesControlChars(t *testing.T) {
	msg := "error\x00with\x01control\x1fchars"
	assert.Equal(t, "errorwithcontrolchars", SanitizeErrorMessage(msg))
}

func TestSanitizeErrorMessage_PreservesWhitespace(t *testing.T) {
	msg := "line1\nline2\r\nline3\ttabbed"
	assert.Equal(t, msg, SanitizeErrorMessage(msg))
}

func TestSanitizeErrorMessage_Truncates(t *testing.T) {
	result := SanitizeErrorMessage(strings.Repeat("x", 5000))
	assert.Len(t, []rune(result), MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(result, "..."))
}

func TestClampRetries(t *testing.T) {
	assert.Equal(t, 0, ClampRetries(-5))
	assert.Equal(t, 3, ClampRetries(3))
	assert.Equal(t, MaxRetries, ClampRetries(1000))
}

func TestClampWorkers(t *testing.T) {
	assert.Equal(t, 1, ClampWorkers(0))
	assert.Equal(t, 4, ClampWorkers(4))
	assert.Equal(t, MaxWorkers, ClampWorkers(10000))
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, ClampPageSize(0))
	assert.Equal(t, 20, ClampPageSize(20))
	assert.Equal(t, MaxPageSize, ClampPageSize(500))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 0.5, ClampConfidence(0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
}
