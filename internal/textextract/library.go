package textextract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFLibrary reads text with a general-purpose PDF library, row by row.
type PDFLibrary struct{}

// NewPDFLibrary returns the pdf-library method.
func NewPDFLibrary() *PDFLibrary {
	return &PDFLibrary{}
}

func (p *PDFLibrary) Name() string { return MethodPDFLibrary }

// Extract reads every page. The library panics on some malformed files; a
// panic is reported as an error.
func (p *PDFLibrary) Extract(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf library panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			sb.WriteString(joinWords(row.Content))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// joinWords concatenates text fragments, inserting a space where the gap
// between fragments is wider than a fraction of the font size.
func joinWords(words []pdf.Text) string {
	var sb strings.Builder
	for i, word := range words {
		if i > 0 {
			prev := words[i-1]
			if gap := word.X - (prev.X + prev.W); gap > word.FontSize*0.2 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(word.S)
	}
	return sb.String()
}
