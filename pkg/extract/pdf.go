package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jdziat/recipe-ingest/pkg/core"
)

var pageFileNumber = regexp.MustCompile(`(\d+)\.txt$`)

// extractPDF validates the document with pdfcpu, unpacks each page's content
// stream and decodes the text-showing operators.
func (e *Extractor) extractPDF(data []byte) (string, int, error) {
	workDir, err := os.MkdirTemp(e.tempDir, "recipe-pdf-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inFile := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", 0, fmt.Errorf("write temp pdf: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(inFile)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", core.ErrCorruptDocument, err)
	}
	pages := pdfCtx.PageCount

	outDir := filepath.Join(workDir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", pages, fmt.Errorf("create content dir: %w", err)
	}
	if err := api.ExtractContentFile(inFile, outDir, nil, conf); err != nil {
		return "", pages, fmt.Errorf("%w: extract content: %v", core.ErrCorruptDocument, err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", pages, fmt.Errorf("read content dir: %w", err)
	}

	type page struct {
		num  int
		text string
	}
	var out []page
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return "", pages, fmt.Errorf("read content stream: %w", err)
		}
		num := len(out) + 1
		if m := pageFileNumber.FindStringSubmatch(entry.Name()); m != nil {
			num, _ = strconv.Atoi(m[1])
		}
		out = append(out, page{num: num, text: ContentStreamText(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].num < out[j].num })

	var sb strings.Builder
	for _, p := range out {
		if strings.TrimSpace(p.text) == "" {
			continue
		}
		sb.WriteString(p.text)
		sb.WriteString("\n\n")
	}
	return sb.String(), pages, nil
}

// ContentStreamText decodes the text-showing operators (Tj, TJ, ', ") of a PDF
// page content stream into lines. Strings in fonts with custom encodings that
// do not decode to printable text are skipped.
func ContentStreamText(content []byte) string {
	lx := &lexer{buf: content}
	var (
		sb       strings.Builder
		operands []operand
		inArray  bool
		array    []operand
	)

	newline := func() {
		s := sb.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		s := sb.String()
		if len(s) > 0 && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			sb.WriteByte(' ')
		}
	}
	show := func(ops []operand) {
		for _, op := range ops {
			switch {
			case op.isString:
				sb.WriteString(op.str)
			case op.num < -200:
				space()
			}
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokString:
			o := operand{isString: true, str: tok.text}
			if inArray {
				array = append(array, o)
			} else {
				operands = append(operands, o)
			}
			continue
		case tokNumber:
			o := operand{num: tok.num}
			if inArray {
				array = append(array, o)
			} else {
				operands = append(operands, o)
			}
			continue
		case tokArrayStart:
			inArray, array = true, nil
			continue
		case tokArrayEnd:
			inArray = false
			continue
		case tokOther:
			continue
		}

		// tokOperator
		switch tok.text {
		case "Tj":
			show(operands)
		case "TJ":
			show(array)
		case "'":
			newline()
			show(operands)
		case "\"":
			newline()
			if len(operands) > 0 {
				show(operands[len(operands)-1:])
			}
		case "T*", "ET":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[1].num != 0 {
				newline()
			} else {
				space()
			}
		case "Tm":
			newline()
		case "BI":
			lx.skipInlineImage()
		}
		operands = operands[:0]
		array = nil
	}
	return sb.String()
}

type operand struct {
	isString bool
	str      string
	num      float64
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokString
	tokNumber
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

type lexer struct {
	buf []byte
	pos int
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isSpace(c)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: decodePDFString(l.literal())}, true
		case c == '<':
			if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther}, true
			}
			l.pos++
			return token{kind: tokString, text: l.hex()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.buf) && l.buf[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			l.pos++
			l.word()
			return token{kind: tokOther}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			w := l.word()
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: n}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.buf) && !isDelimiter(l.buf[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		l.pos++
	}
	return string(l.buf[start:l.pos])
}

// literal reads a (…) string body; the opening paren is already consumed.
func (l *lexer) literal() []byte {
	var out []byte
	depth := 1
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.buf) {
				return out
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b', 'f':
			case '\r':
				if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.buf) && l.buf[l.pos] >= '0' && l.buf[l.pos] <= '7'; i++ {
						v = v*8 + int(l.buf[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

// hex reads a <…> string body and keeps it only if it decodes to printable text.
func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.buf) && l.buf[l.pos] != '>' {
		if c := l.buf[l.pos]; !isSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		raw = append(raw, byte(v))
	}
	s := decodePDFString(raw)
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			return ""
		}
	}
	return s
}

func (l *lexer) skipInlineImage() {
	idx := bytes.Index(l.buf[l.pos:], []byte("EI"))
	if idx < 0 {
		l.pos = len(l.buf)
		return
	}
	l.pos += idx + 2
}

// decodePDFString handles UTF-16BE strings (with BOM) and treats everything
// else as Latin-1, which matches PDFDocEncoding for printable text.
func decodePDFString(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(u))
	}
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
