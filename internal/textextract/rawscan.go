package textextract

import (
	"bytes"
	"compress/zlib"
	"context"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

// rawKeywords gate the raw scan: without one of them the output is noise.
var rawKeywords = []string{"₽", "руб", "RUB", "Успешно", "успешно", "Сумма", "сумма"}

var streamPattern = regexp.MustCompile(`(?s)stream\r?\n(.*?)\r?\n?endstream`)

const maxInflated = 8 << 20

// RawScan is the last resort: inflate every stream, render any content
// operators, otherwise keep printable UTF-8 runs.
type RawScan struct{}

// NewRawScan returns the raw-scan method.
func NewRawScan() *RawScan { return &RawScan{} }

func (r *RawScan) Name() string { return MethodRawScan }

func (r *RawScan) Extract(ctx context.Context, data []byte) (string, error) {
	var sb strings.Builder
	for _, m := range streamPattern.FindAllSubmatch(data, -1) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		body := m[1]
		if inflated, ok := inflate(body); ok {
			body = inflated
		}
		if text := decodeContentStream(body); strings.TrimSpace(text) != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
			continue
		}
		for _, run := range printableRuns(body) {
			sb.WriteString(run)
			sb.WriteByte('\n')
		}
	}

	text := sb.String()
	for _, kw := range rawKeywords {
		if strings.Contains(text, kw) {
			return text, nil
		}
	}
	return "", nil
}

func inflate(b []byte) ([]byte, bool) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, false
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxInflated))
	if err != nil && len(out) == 0 {
		return nil, false
	}
	return out, true
}

// printableRuns splits b into lines of valid UTF-8 text at least three
// runes long.
func printableRuns(b []byte) []string {
	var runs []string
	var cur strings.Builder
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if utf8.RuneCountInString(s) >= 3 {
			runs = append(runs, s)
		}
		cur.Reset()
	}
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		switch {
		case r == utf8.RuneError || r == '\n' || r == '\r':
			flush()
		case r < 0x20 && r != '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return runs
}
