package textextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) Recognize(_ context.Context, data []byte, mimeType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text + " " + mimeType, nil
}

func TestOCR_UsesRecognizer(t *testing.T) {
	ocr := NewOCR(fakeRecognizer{text: "Успешно"}, 600)
	text, err := ocr.Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "Успешно application/pdf", text)
	assert.Equal(t, MethodOCR, ocr.Name())

	_, err = NewOCR(fakeRecognizer{err: errors.New("quota")}, 600).Extract(context.Background(), nil)
	assert.EqualError(t, err, "quota")
}

func TestOCR_RateLimitHonoursContext(t *testing.T) {
	ocr := NewOCR(fakeRecognizer{text: "x"}, 1)
	_, err := ocr.Extract(context.Background(), nil)
	require.NoError(t, err)

	// The single token is spent; the next call would wait a minute.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ocr.Extract(ctx, nil)
	assert.ErrorContains(t, err, "rate limit")
}

func TestNewGeminiRecognizer_RequiresKey(t *testing.T) {
	_, err := NewGeminiRecognizer(context.Background(), "", "gemini-2.0-flash")
	assert.Error(t, err)
}

func TestPdftotext_MissingBinary(t *testing.T) {
	_, err := NewPdftotext(filepath.Join(t.TempDir(), "no-such-tool")).Extract(context.Background(), []byte("%PDF"))
	assert.ErrorContains(t, err, "not available")
}

func fakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool")
	}
	path := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0700))
	return path
}

func TestPdftotext_ConvertsAndCleansUp(t *testing.T) {
	// args: -layout -enc UTF-8 <in> <out>
	tool := fakeTool(t, `echo "$4" > "$5"; printf 'Успешно\n' >> "$5"`)

	text, err := NewPdftotext(tool).Extract(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Успешно", lines[1])

	_, statErr := os.Stat(filepath.Dir(lines[0]))
	assert.True(t, os.IsNotExist(statErr), "temp dir must be removed")
}

func TestPdftotext_FailureCleansUp(t *testing.T) {
	tool := fakeTool(t, `echo "$4" > /dev/stderr; exit 3`)

	_, err := NewPdftotext(tool).Extract(context.Background(), []byte("%PDF-1.4"))
	require.Error(t, err)

	msg := err.Error()
	start := strings.Index(msg, "(")
	require.GreaterOrEqual(t, start, 0)
	inPath := strings.TrimSpace(strings.Trim(msg[start:], "()"))
	_, statErr := os.Stat(filepath.Dir(inPath))
	assert.True(t, os.IsNotExist(statErr), "temp dir must be removed on failure")
}

func TestPdftotext_KilledOnTimeout(t *testing.T) {
	tool := fakeTool(t, "exec sleep 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewPdftotext(tool).Extract(ctx, []byte("%PDF-1.4"))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

const helvetica = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"

// buildPDF writes a one-page PDF with a correct cross-reference table.
func buildPDF(font, content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		font,
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

const twoLines = "BT /F1 12 Tf 1 0 0 1 72 712 Tm (Amount 4500 RUB) Tj 1 0 0 1 72 698 Tm (Status OK) Tj ET"

func TestTextLayer_ReadsTextOperators(t *testing.T) {
	text, err := NewTextLayer().Extract(context.Background(), buildPDF(helvetica, twoLines))
	require.NoError(t, err)
	assert.Equal(t, "Amount 4500 RUB\nStatus OK", strings.TrimSpace(text))
}

func TestTextLayer_RejectsGlyphCodes(t *testing.T) {
	_, err := NewTextLayer().Extract(context.Background(), buildPDF(helvetica, "BT /F1 12 Tf <00240025> Tj ET"))
	assert.ErrorContains(t, err, "glyph codes")

	text, err := NewTextLayer().Extract(context.Background(), buildPDF(helvetica, "BT /F1 12 Tf (Status OK) Tj ET"))
	require.NoError(t, err)
	assert.Equal(t, "Status OK", strings.TrimSpace(text))
}

func TestUndecodedGlyphs(t *testing.T) {
	type0 := []byte("<< /Subtype/Type0 >>")
	assert.True(t, undecodedGlyphs(nil, "a\x00b"))
	assert.True(t, undecodedGlyphs(type0, "QRSTU"))
	assert.False(t, undecodedGlyphs(type0, "Сумма"))
	assert.False(t, undecodedGlyphs(type0, "4500"))
	assert.False(t, undecodedGlyphs([]byte("<< /Subtype /Type1 >>"), "QRSTU"))
}

func TestPDFLibrary_ReadsRows(t *testing.T) {
	text, err := NewPDFLibrary().Extract(context.Background(), buildPDF(helvetica, twoLines))
	require.NoError(t, err)
	assert.Equal(t, "Amount 4500 RUB\nStatus OK", strings.TrimSpace(text))
}
