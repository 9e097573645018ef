package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

// extractDOC reads the WordDocument stream of a Word 97-2003 compound file.
// The text range comes from the FIB (fcMin/fcMac); when that range is unusable
// the whole stream is scanned for printable runs.
func extractDOC(data []byte) (string, error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: compound file: %v", core.ErrCorruptDocument, err)
	}

	var stream []byte
	for entry, err := r.Next(); err == nil; entry, err = r.Next() {
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err = io.ReadAll(entry)
		if err != nil {
			return "", fmt.Errorf("%w: WordDocument stream: %v", core.ErrCorruptDocument, err)
		}
		break
	}
	if stream == nil {
		return "", fmt.Errorf("%w: no WordDocument stream", core.ErrCorruptDocument)
	}

	if text, ok := fibText(stream); ok {
		return text, nil
	}
	return scanRuns(stream), nil
}

// fibText decodes the stream range named by the file information block.
func fibText(stream []byte) (string, bool) {
	if len(stream) < 0x20 || binary.LittleEndian.Uint16(stream) != 0xA5EC {
		return "", false
	}
	fcMin := int(binary.LittleEndian.Uint32(stream[0x18:]))
	fcMac := int(binary.LittleEndian.Uint32(stream[0x1C:]))
	if fcMin <= 0 || fcMac <= fcMin || fcMac > len(stream) {
		return "", false
	}
	region := stream[fcMin:fcMac]

	wide := decodeUTF16LE(region)
	narrow, err := charmap.Windows1252.NewDecoder().Bytes(region)
	if err != nil {
		return cleanWordText(wide), true
	}
	if printableRatio(wide) >= printableRatio(string(narrow)) {
		return cleanWordText(wide), true
	}
	return cleanWordText(string(narrow)), true
}

// scanRuns collects UTF-16LE runs of at least four printable characters.
func scanRuns(stream []byte) string {
	var (
		sb  strings.Builder
		run []uint16
	)
	flush := func() {
		if len(run) >= 4 {
			sb.WriteString(string(utf16.Decode(run)))
			sb.WriteByte('\n')
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(stream); i += 2 {
		u := binary.LittleEndian.Uint16(stream[i:])
		if u == '\r' || (u >= 0x20 && unicode.IsPrint(rune(u))) {
			run = append(run, u)
			continue
		}
		flush()
	}
	flush()
	return cleanWordText(sb.String())
}

func decodeUTF16LE(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, binary.LittleEndian.Uint16(b[i:]))
	}
	return string(utf16.Decode(u))
}

func printableRatio(s string) float64 {
	total, good := 0, 0
	for _, r := range s {
		total++
		if r == '\r' || r == '\n' || r == '\t' || (unicode.IsPrint(r) && r < 0x2500) {
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}

// cleanWordText maps Word's control characters to plain text equivalents.
func cleanWordText(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', 0x0B, 0x0C:
			return '\n'
		case 0x07:
			return '\t'
		case '\n', '\t':
			return r
		}
		if r < 0x20 || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
}
